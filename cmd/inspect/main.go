// Command inspect dumps the message records of a BadgerDB store in a
// readable table, for debugging a relay's on-disk state while it is
// stopped.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/olekukonko/tablewriter"
)

// record mirrors the repository's stored shape.
type record struct {
	ID        string `cbor:"1,keyasint"`
	Group     string `cbor:"2,keyasint"`
	Sender    string `cbor:"3,keyasint"`
	Tenant    string `cbor:"4,keyasint"`
	Content   string `cbor:"5,keyasint"`
	Lang      string `cbor:"6,keyasint"`
	CreatedAt int64  `cbor:"7,keyasint"`
	UpdatedAt int64  `cbor:"8,keyasint"`
	Deleted   bool   `cbor:"9,keyasint"`
}

func main() {
	dbPath := flag.String("db", "/tmp/chat-relay/badger", "Path to badger DB")
	// "msg:" only: the grp: index entries carry no value worth printing
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Group", "Sender", "Tenant", "Lang", "Created", "Deleted", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				var rec record
				if err := cbor.Unmarshal(value, &rec); err != nil {
					// Skip the broken record instead of aborting the scan
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				displayID := rec.ID
				if len(displayID) > 8 {
					displayID = displayID[:8]
				}
				content := rec.Content
				if len(content) > 60 {
					content = content[:60] + "…"
				}

				table.Append([]string{
					displayID,
					rec.Group,
					rec.Sender,
					rec.Tenant,
					rec.Lang,
					time.Unix(0, rec.CreatedAt).UTC().Format("15:04:05"),
					fmt.Sprintf("%t", rec.Deleted),
					content,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Corruption needs one open in write mode so Badger can truncate
		// its value log, then a clean read-only reopen.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
