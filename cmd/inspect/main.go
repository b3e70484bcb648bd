package main

import (
	"dwilive/repositories"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// inspect prints stored records as a table, e.g. -prefix "msg:conv_..." for one conversation.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "", "Key prefix to scan (user:, conv:, msg:)")
	indexes := flag.Bool("indexes", false, "Also list index keys")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "ID", "Detail"})
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

	counts := map[string]int{}
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				entry := repositories.Describe(key, v)
				counts[entry.Kind]++
				if entry.Kind == "INDEX" && !*indexes {
					return nil
				}
				table.Append([]string{entry.Key, entry.Kind, entry.At, entry.ID, entry.Detail})
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

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(
		fmt.Sprintf("  ====== %s  users=%d conversations=%d messages=%d indexes=%d ======",
			*dbPath, counts["USER"], counts["CONVERSATION"], counts["MESSAGE"], counts["INDEX"])))
	table.Render()
}

// openDB opens the store read-only so a running server keeps its lock.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
