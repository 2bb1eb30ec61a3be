/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package nl2sql

import (
	"fmt"
	"strings"
)

// fewShotExample pairs a natural-language question with its SQL answer.
type fewShotExample struct {
	question string
	sql      string
}

// fewShotExamples guide the model toward bare, single-statement SELECT
// output. They reference a generic retail schema on purpose; the real schema
// arrives separately in the prompt.
var fewShotExamples = []fewShotExample{
	{
		question: "List the first 5 rows from the products table.",
		sql:      "SELECT * FROM products LIMIT 5;",
	},
	{
		question: "Show total sales amount per customer ordered by total descending.",
		sql:      "SELECT customer_id, SUM(total_amount) AS total_sales FROM orders GROUP BY customer_id ORDER BY total_sales DESC;",
	},
	{
		question: "Find the top 10 products by quantity sold.",
		sql:      "SELECT product_id, SUM(quantity) AS total_quantity FROM order_details GROUP BY product_id ORDER BY total_quantity DESC LIMIT 10;",
	},
}

// buildPrompt assembles the full generation prompt: safety rules, the schema
// listing, optional grounding context, few-shot examples, and finally the
// user's question.
func buildPrompt(question, schemaDescription, grounding string) string {
	var sb strings.Builder
	sb.WriteString("You are a precise Text-to-SQL generator. ")
	sb.WriteString("Generate a single valid SQL SELECT statement based on the user's question. ")
	sb.WriteString("Do not include explanations. Only return the SQL.\n\n")
	sb.WriteString("Database schema:\n")
	sb.WriteString(schemaDescription)
	if grounding != "" {
		sb.WriteString("\n\nAdditional context about the data:\n")
		sb.WriteString(grounding)
	}
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Only use SELECT queries.\n")
	sb.WriteString("- Never modify data: INSERT, UPDATE, DELETE, DROP, ALTER, TRUNCATE, ATTACH, DETACH are forbidden.\n")
	sb.WriteString("- Use columns and tables exactly as provided in the schema.\n\n")
	sb.WriteString("Examples:\n")
	for _, ex := range fewShotExamples {
		sb.WriteString(fmt.Sprintf("Question: %s\nSQL: %s\n", ex.question, ex.sql))
	}
	sb.WriteString(fmt.Sprintf("\nQuestion: %s\nSQL:", question))
	return sb.String()
}

// buildRetryPrompt extends the original prompt with the rejection the first
// candidate earned, asking the model to correct its table or column choices.
func buildRetryPrompt(question, schemaDescription, grounding, rejectedSQL, rejectionMessage string) string {
	var sb strings.Builder
	sb.WriteString(buildPrompt(question, schemaDescription, grounding))
	sb.WriteString(fmt.Sprintf(" %s\n\n", rejectedSQL))
	sb.WriteString(fmt.Sprintf("That query was rejected: %s.\n", rejectionMessage))
	sb.WriteString("Generate a corrected SELECT statement using only tables and columns from the schema above.\nSQL:")
	return sb.String()
}
