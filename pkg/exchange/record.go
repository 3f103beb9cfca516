package exchange

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/schollz/progressbar/v3"
)

// recordPrecision is the number of decimals written for prices and volumes
const recordPrecision = 8

// Record writes the last limit candles of every symbol to dir/<SYMBOL>.csv,
// the files CSVFeed replays. Symbols that fail are logged and skipped; the
// number of recorded files is returned.
func Record(ctx context.Context, feed core.MarketFeed, dir, timeframe string, limit int,
	symbols []string, progress io.Writer, log logger.Logger) (int, error) {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	if progress == nil {
		progress = io.Discard
	}

	bar := progressbar.NewOptions(len(symbols),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription(fmt.Sprintf("recording %s %s", feed.Name(), timeframe)),
		progressbar.OptionShowCount(),
	)

	recorded := 0
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return recorded, err
		}

		if err := recordSymbol(ctx, feed, dir, symbol, timeframe, limit); err != nil {
			log.WithField("symbol", symbol).WithError(err).Warn("recording skipped")
		} else {
			recorded++
		}

		if err := bar.Add(1); err != nil {
			log.WithError(err).Debug("failed to update progress bar")
		}
	}

	if err := bar.Finish(); err != nil {
		log.WithError(err).Debug("failed to close progress bar")
	}

	log.Infof("recorded %d of %d symbols from %s into %s", recorded, len(symbols), feed.Name(), dir)
	return recorded, nil
}

func recordSymbol(ctx context.Context, feed core.MarketFeed, dir, symbol, timeframe string, limit int) error {
	candles, err := feed.Candles(ctx, symbol, timeframe, limit)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("%w: no candles for %s", core.ErrDataUnavailable, symbol)
	}

	file, err := os.Create(filepath.Join(dir, symbol+".csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteCandlesCSV(file, candles, recordPrecision)
}
