package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	orders *csv.Writer
	equity *csv.Writer
	of, ef *os.File
}

func NewCSV(ordersPath, equityPath string) (*CSVJournal, error) {
	of, err := os.Create(ordersPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		of.Close()
		return nil, err
	}

	ow := csv.NewWriter(of)
	ew := csv.NewWriter(ef)

	if err := ow.Write([]string{"order_id", "broker_order_id", "symbol", "side", "quantity", "avg_fill_price", "commission", "status", "time"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "cash", "equity", "exposure"}); err != nil {
		return nil, err
	}

	ow.Flush()
	if err := ow.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{ow, ew, of, ef}, nil
}

func (j *CSVJournal) RecordOrder(r OrderRecord) error {
	j.orders.Write([]string{
		r.OrderID,
		r.BrokerOrderID,
		r.Symbol,
		r.Side,
		f(r.Quantity),
		f(r.AvgFillPrice),
		f(r.Commission),
		r.Status,
		r.Time.Format(time.RFC3339),
	})
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Cash),
		f(e.Equity),
		f(e.Exposure),
	})
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.orders.Flush()
	j.equity.Flush()
	if err := j.of.Close(); err != nil {
		j.ef.Close()
		return err
	}
	return j.ef.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
