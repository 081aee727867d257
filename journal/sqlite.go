package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordOrder(r OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, broker_order_id, symbol, side, quantity, avg_fill_price, commission, status, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OrderID, r.BrokerOrderID, r.Symbol, r.Side,
		r.Quantity, r.AvgFillPrice, r.Commission, r.Status, r.Time,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, cash, equity, exposure)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Cash, e.Equity, e.Exposure,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
