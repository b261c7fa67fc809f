// attrctl is a standalone inspection and maintenance tool for one
// document sub-database's attribute directory: load its declared
// attributes, report status, and trigger a flush or list its
// snapshots, without running a full search node.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
