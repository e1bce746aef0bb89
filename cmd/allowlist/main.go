// Command allowlist builds a sale allowlist from a CSV of
// address,allocation rows. It prints the merkle root to configure on the
// sale and the proof each wallet deposits with, as JSON.
//
// Usage:
//
//	allowlist [-codec plain|hex|bech32:<hrp>] [-out file] [file.csv]
//
// Rows for the same address are summed. A first row whose allocation is
// not a number is taken as a header.
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/crypto"
)

// Entry is one wallet of the allowlist.
type Entry struct {
	Address    string       `json:"address"`
	Allocation types.Amount `json:"allocation"`
	Proof      []string     `json:"proof"`
}

// Allowlist is the tool's output.
type Allowlist struct {
	Root    string  `json:"merkle_root"`
	Entries []Entry `json:"entries"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("allowlist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	codecSpec := fs.String("codec", "plain", "address codec (plain, hex, bech32:<hrp>)")
	outPath := fs.String("out", "", "write JSON here instead of stdout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "Error: at most one input file")
		return 2
	}
	codec, err := types.ParseAddressCodec(*codecSpec)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	in := stdin
	if fs.NArg() == 1 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}
	list, err := Build(in, codec)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out := stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "merkle root %s (%d wallets)\n", list.Root, len(list.Entries))
	return 0
}

// Build reads address,allocation rows from r and builds the tree. Entries
// come back in address order.
func Build(r io.Reader, codec types.AddressCodec) (*Allowlist, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	totals := make(map[string]types.Amount)
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		alloc, err := types.ParseAmount(strings.TrimSpace(rec[1]))
		if err != nil {
			if row == 1 {
				continue
			}
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		addr, err := codec.Canonicalize(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		sum, err := totals[addr].Add(alloc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		totals[addr] = sum
	}
	if len(totals) == 0 {
		return nil, errors.New("no allowlist rows")
	}

	entries := make([]Entry, 0, len(totals))
	leaves := make([]types.Hash, 0, len(totals))
	for addr, alloc := range totals {
		entries = append(entries, Entry{Address: addr, Allocation: alloc})
		leaves = append(leaves, crypto.LeafHash(addr, alloc))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
	tree, err := crypto.NewMerkleTree(leaves)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		proof, err := tree.ProofHex(crypto.LeafHash(entries[i].Address, entries[i].Allocation))
		if err != nil {
			return nil, err
		}
		entries[i].Proof = proof
	}
	return &Allowlist{Root: tree.Root().Hex(), Entries: entries}, nil
}
