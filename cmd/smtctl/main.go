// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// smtctl inspects the on-disk state of a persistent sparse Merkle tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/polybase/payy/database/leveldb"
	"github.com/polybase/payy/smt"
	"github.com/polybase/payy/storage"
)

var (
	depth   int
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "smtctl",
		Short:         "inspect a persistent sparse Merkle tree",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().IntVar(&depth, "depth", 257, "depth of the stored tree")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(
		rootHashCommand(),
		elementsCommand(),
		hashesCommand(),
		insertCommand(),
		proveCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "smtctl: %s\n", err)
		os.Exit(1)
	}
}

// open loads the tree stored at path. The caller owns the returned handle.
func open(path string) (*storage.Persistent[[]byte], error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	db, err := leveldb.New(path)
	if err != nil {
		return nil, err
	}

	persistent, err := storage.Load(db, depth, storage.RawCodec{}, storage.WithLogger(log))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return persistent, nil
}

func rootHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "root <path>",
		Short: "print the root hash of the stored tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			persistent, err := open(args[0])
			if err != nil {
				return err
			}
			defer persistent.Close()

			cmd.Println(persistent.Tree().RootHash())
			return nil
		},
	}
}

func elementsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "elements <path>",
		Short: "list every stored element in ascending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			persistent, err := open(args[0])
			if err != nil {
				return err
			}
			defer persistent.Close()

			for _, entry := range persistent.Tree().Entries() {
				cmd.Printf("%s\t%x\n", entry.Element, entry.Value)
			}
			return nil
		},
	}
}

func hashesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hashes <path>",
		Short: "list the known hashes held by the stored tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			persistent, err := open(args[0])
			if err != nil {
				return err
			}
			defer persistent.Close()

			hashes := persistent.Tree().KnownHashes()
			for _, h := range hashes {
				cmd.Printf("%s %s -> %s\n", h.Left, h.Right, h.Result)
			}
			cmd.Printf("%d known hashes\n", len(hashes))
			return nil
		},
	}
}

func insertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <path> <element> [value]",
		Short: "insert an element, then persist the new hashes",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			element, err := smt.ElementFromHex(args[1])
			if err != nil {
				return fmt.Errorf("parsing element: %w", err)
			}
			var value []byte
			if len(args) == 3 {
				value = []byte(args[2])
			}

			persistent, err := open(args[0])
			if err != nil {
				return err
			}
			defer persistent.Close()

			if err := persistent.Insert(element, value); err != nil {
				return err
			}
			cmd.Println(persistent.Tree().RootHash())
			return nil
		},
	}
}

func proveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prove <path> <element>",
		Short: "print the membership proof for an element's slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			element, err := smt.ElementFromHex(args[1])
			if err != nil {
				return fmt.Errorf("parsing element: %w", err)
			}

			persistent, err := open(args[0])
			if err != nil {
				return err
			}
			defer persistent.Close()

			path := persistent.Tree().PathFor(element)
			for _, sibling := range path.SiblingsDeepestFirst() {
				cmd.Println(sibling)
			}
			switch {
			case path.Proves(element):
				cmd.Println("present")
			case path.Proves(smt.Zero):
				cmd.Println("absent")
			default:
				cmd.Println("slot occupied by a colliding element")
			}
			return nil
		},
	}
}
