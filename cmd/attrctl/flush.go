package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var flushAttrName string

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush every attribute, or one named attribute, to disk",
	RunE:  runFlush,
}

func init() {
	flushCmd.Flags().StringVar(&flushAttrName, "attribute", "", "flush only this attribute (default: all)")
}

func runFlush(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	fs, ss := m.FlushTargets()
	ctx := context.Background()
	flushed := 0
	for _, t := range fs {
		if flushAttrName != "" && t.Name() != "attribute.flush."+flushAttrName {
			continue
		}
		if err := t.Flush(ctx); err != nil {
			return fmt.Errorf("attrctl: %s: %w", t.Name(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "flushed %s at serial %d\n", t.Name(), t.FlushedSerial())
		flushed++
	}
	for _, s := range ss {
		if flushAttrName != "" && s.Name() != "attribute.shrink."+flushAttrName {
			continue
		}
		if s.Run() {
			fmt.Fprintf(cmd.OutOrStdout(), "shrank %s\n", s.Name())
		}
	}
	if flushAttrName != "" && flushed == 0 {
		return fmt.Errorf("attrctl: no such attribute %q", flushAttrName)
	}
	return nil
}
