package docstore

import (
	"encoding/json"
	"fmt"
)

const (
	ContainerFinance = "Finance"
	ContainerHR      = "HR"
	ContainerSales   = "Sales"
)

// Record is the closed set of document shapes the store serves. The concrete
// type is chosen by container name; unknown containers decode to
// GenericRecord rather than failing.
type Record interface {
	isRecord()
}

type FinanceRecord struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
}

type HRRecord struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Title      string `json:"title"`
	HireDate   string `json:"hireDate"`
}

type SalesRecord struct {
	ID       string  `json:"id"`
	Region   string  `json:"region"`
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
	Date     string  `json:"date"`
}

type GenericRecord map[string]any

func (FinanceRecord) isRecord() {}
func (HRRecord) isRecord()      {}
func (SalesRecord) isRecord()   {}
func (GenericRecord) isRecord() {}

// KnownContainers enumerates the containers with a fixed record shape. The
// access policy only grants containers from this set.
func KnownContainers() []string {
	return []string{ContainerFinance, ContainerHR, ContainerSales}
}

func decodeRecord(container string, raw json.RawMessage) (Record, error) {
	switch container {
	case ContainerFinance:
		var rec FinanceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", container, err)
		}
		return rec, nil
	case ContainerHR:
		var rec HRRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", container, err)
		}
		return rec, nil
	case ContainerSales:
		var rec SalesRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", container, err)
		}
		return rec, nil
	default:
		var rec GenericRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		return rec, nil
	}
}

func decodePage(container string, docs []json.RawMessage) ([]Record, error) {
	records := make([]Record, 0, len(docs))
	for _, raw := range docs {
		rec, err := decodeRecord(container, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
