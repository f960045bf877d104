// Command viewer prints the room records of a running (or stopped) meethub
// store as a table. It opens Badger read-only and bypasses the lock guard so
// it can inspect a store the server currently holds.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"meethub/domain"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	// VIEWER_SHOW_ENDED=false hides ended rooms from the listing.
	ShowEnded bool `envconfig:"VIEWER_SHOW_ENDED" default:"true"`
}

func main() {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts := badger.DefaultOptions(cfg.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Host", "Title", "Members", "Status", "Created", "Ended"})
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

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var room domain.Room
				if err := json.Unmarshal(v, &room); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}
				if !cfg.ShowEnded && !room.Active {
					return nil
				}

				status := color.Green.Sprint("ACTIVE")
				ended := "-"
				if !room.Active {
					status = color.Red.Sprint("ENDED")
					if room.EndedAt != nil {
						ended = room.EndedAt.Format(time.RFC3339)
					}
				}

				table.Append([]string{
					room.ID,
					room.HostID,
					room.Title,
					fmt.Sprintf("%d/%d", room.MemberCount(), room.Capacity),
					status,
					room.CreatedAt.Format(time.RFC3339),
					ended,
				})
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	table.Render()
	fmt.Printf("\n%d room(s)\n", count)
}
