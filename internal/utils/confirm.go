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
package utils

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConfirmAction prompts for a yes/no answer on in before actionDescription is
// carried out. Anything other than yes/y declines.
func ConfirmAction(in io.Reader, actionDescription string) bool {
	reader := bufio.NewReader(in)
	fmt.Printf("\n-------------------------------------------------------------\n")
	fmt.Printf("Generated %s.\n", actionDescription)
	fmt.Print("Do you want to execute this query against the database? (yes/no): ")
	text, _ := reader.ReadString('\n')
	action := strings.TrimSpace(strings.ToLower(text))
	return action == "yes" || action == "y"
}
