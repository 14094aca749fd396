package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/txn-quality/internal/domain"
)

const utf8BOM = "\ufeff"

// LoadTransactionsCSV decodes a batch file. The header row is matched
// case-insensitively; extra columns are ignored and short rows are padded
// with empty values. A missing required column fails the whole batch.
func LoadTransactionsCSV(r io.Reader) ([]domain.RawTransaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("LoadTransactionsCSV: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("LoadTransactionsCSV: reading header: %w", err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("LoadTransactionsCSV: %w", err)
	}

	var txs []domain.RawTransaction
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LoadTransactionsCSV: reading row %d: %w", len(txs)+2, err)
		}

		field := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}

		txs = append(txs, domain.RawTransaction{
			TransactionID:   field(ColTransactionID),
			CustomerID:      field(ColCustomerID),
			Amount:          field(ColAmount),
			Currency:        field(ColCurrency),
			Timestamp:       field(ColTimestamp),
			Timezone:        field(ColTimezone),
			Status:          field(ColStatus),
			ProductCategory: field(ColProductCategory),
		})
	}

	return txs, nil
}

// ParseTransactionsCSV is LoadTransactionsCSV over an in-memory file.
func ParseTransactionsCSV(data []byte) ([]domain.RawTransaction, error) {
	return LoadTransactionsCSV(bytes.NewReader(data))
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}
