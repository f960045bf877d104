// Package internal hosts the operator-facing debug surface: a read-only HTML
// view over the Badger keyspace plus process self-stats. It is served on a
// separate port and is not part of the public API.
package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"meethub/domain"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key     string
	RoomID  string
	Host    string
	Title   string
	Members string
	Status  string
	Created string
	Ended   string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves the keyspace inspector on its own port. The scan
// prefix defaults to the primary room records and can be overridden with
// ?prefix= to look at the active index instead.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "room:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, roomRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

func roomRow(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:     key,
		RoomID:  "--------",
		Host:    "-",
		Title:   "-",
		Members: "-",
		Status:  "RAW",
		Created: "--:--:--",
		Ended:   "-",
	}

	var room domain.Room
	if err := json.Unmarshal(val, &room); err != nil || room.ID == "" {
		// Index entries hold a bare host id, not a JSON record.
		row.Host = string(val)
		row.Title = "size " + strconv.Itoa(len(val)) + " bytes"
		return row
	}

	row.RoomID = room.ID
	row.Host = room.HostID
	row.Title = room.Title
	row.Members = fmt.Sprintf("%d/%d", room.MemberCount(), room.Capacity)
	row.Created = room.CreatedAt.Format(time.RFC3339)
	if room.Active {
		row.Status = "ACTIVE"
	} else {
		row.Status = "ENDED"
		if room.EndedAt != nil {
			row.Ended = room.EndedAt.Format(time.RFC3339)
		}
	}
	return row
}
