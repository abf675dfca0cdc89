// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/wikimedia/cloud-wmcs-cookbooks/cmd/wmcs-cookbook"

func main() {
	cmd.Execute()
}
