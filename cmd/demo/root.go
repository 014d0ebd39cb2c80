package demo

import (
	"fmt"
	"io"

	"github.com/Kain-Deterick/VK-Internship/cmd/util"
	"github.com/Kain-Deterick/VK-Internship/lib/clock"
	"github.com/Kain-Deterick/VK-Internship/lib/db"
	"github.com/Kain-Deterick/VK-Internship/lib/db/engines/kvstorage"
	"github.com/Kain-Deterick/VK-Internship/lib/store"
	"github.com/Kain-Deterick/VK-Internship/lib/store/lstore"
	"github.com/spf13/cobra"
)

var (
	// DemoCmd runs a fixed scenario against a fresh store
	DemoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run a short get/set/scan scenario and print the results",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			_, err := util.GetConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.OutOrStdout(), NewStore(clock.NewRealClock()))
		},
	}
)

// Records is the initial content of the demo store
func Records() []db.Record {
	return []db.Record{
		{Key: "key1", Value: []byte("val1"), TTL: 0},
		{Key: "key2", Value: []byte("val2"), TTL: 40},
	}
}

// NewStore creates the demo store loaded with Records
func NewStore(c clock.Clock) store.IStore {
	return lstore.NewLocalStore("demo", func() db.KVDB {
		return kvstorage.NewKVStorage(Records(), &kvstorage.Options{Clock: c})
	})
}

// Run executes the demo scenario on s and writes the output to w
func Run(w io.Writer, s store.IStore) error {
	fmt.Fprintln(w, "---- get ----")
	if value, ok, err := s.Get("key1"); err != nil {
		return err
	} else if ok {
		fmt.Fprintf(w, "key1: %s\n", value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "---- set ----")
	if err := s.Set("key3", []byte("value3"), 0); err != nil {
		return err
	}
	if value, ok, err := s.Get("key3"); err != nil {
		return err
	} else if ok {
		fmt.Fprintf(w, "key3: %s\n", value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "---- getManySorted ----")
	pairs, err := s.GetManySorted("key2", 10)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		fmt.Fprintf(w, "%s: %s\n", p.Key, p.Value)
	}

	return nil
}
