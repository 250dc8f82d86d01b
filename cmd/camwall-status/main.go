// camwall-status prints the window statuses a running camwall publishes to
// Redis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/edirooss/camwall/internal/repo"
	"github.com/edirooss/camwall/pkg/fmtt"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("redis", "127.0.0.1:6379", "Redis address")
	db := flag.Int("db", 0, "Redis database")
	asJSON := flag.Bool("json", false, "print JSON")
	flag.Parse()

	if err := run(*addr, *db, *asJSON); err != nil {
		fmtt.PrintErrChain(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr string, db int, asJSON bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := repo.NewRepository(zap.NewNop(), addr, db)
	defer r.Close()

	recs, err := r.Windows.List(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Println("no window statuses published")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tNAME\tSTATUS\tRANK\tRESTARTS\tURL\tAGE")
	now := time.Now()
	for _, rec := range recs {
		age := now.Sub(time.UnixMilli(rec.At)).Truncate(time.Second)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			rec.Key, rec.Name, rec.Status, rec.Rank, rec.Restarts, rec.URL, age)
	}
	return tw.Flush()
}
