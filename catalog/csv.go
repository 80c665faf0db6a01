package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

// Columns is the canonical column set, in fixed order. Every collector emits
// exactly these columns; the assembler rejects staged files that drift.
var Columns = []string{
	"provider",
	"instance_name",
	"location",
	"price",
	"spot_price",
	"gpu_count",
	"gpu_name",
	"gpu_memory",
	"gpu_vendor",
	"cpu_count",
	"memory",
	"disk_size",
	"available",
}

// WriteCSV serializes records in the canonical schema. Absent optionals are
// encoded as empty strings.
func WriteCSV(w io.Writer, records []OfferRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		row := []string{
			r.Provider,
			r.InstanceName,
			r.Location,
			r.Price.String(),
			formatOptDecimal(r.SpotPrice),
			strconv.Itoa(r.GPUCount),
			r.GPUName,
			formatFloat(r.GPUMemory),
			string(r.GPUVendor),
			strconv.Itoa(r.CPUCount),
			formatFloat(r.Memory),
			formatOptFloat(r.DiskSize),
			strconv.FormatBool(r.Available),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses records in the canonical schema. The header must match
// Columns exactly; staged files written by older builds fail loudly here
// instead of producing misaligned records.
func ReadCSV(r io.Reader) ([]OfferRecord, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty catalog file: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var records []OfferRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++

		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func checkHeader(header []string) error {
	if len(header) != len(Columns) {
		return fmt.Errorf("header has %d columns, want %d", len(header), len(Columns))
	}
	for i, col := range Columns {
		if header[i] != col {
			return fmt.Errorf("header column %d is %q, want %q", i, header[i], col)
		}
	}
	return nil
}

func parseRow(row []string) (OfferRecord, error) {
	var rec OfferRecord
	if len(row) != len(Columns) {
		return rec, fmt.Errorf("row has %d columns, want %d", len(row), len(Columns))
	}

	rec.Provider = row[0]
	rec.InstanceName = row[1]
	rec.Location = row[2]

	price, err := decimal.NewFromString(row[3])
	if err != nil {
		return rec, fmt.Errorf("parse price %q: %w", row[3], err)
	}
	rec.Price = price

	if row[4] != "" {
		spot, err := decimal.NewFromString(row[4])
		if err != nil {
			return rec, fmt.Errorf("parse spot_price %q: %w", row[4], err)
		}
		rec.SpotPrice = &spot
	}

	if rec.GPUCount, err = strconv.Atoi(row[5]); err != nil {
		return rec, fmt.Errorf("parse gpu_count %q: %w", row[5], err)
	}
	rec.GPUName = row[6]
	if rec.GPUMemory, err = parseFloat(row[7]); err != nil {
		return rec, fmt.Errorf("parse gpu_memory %q: %w", row[7], err)
	}
	rec.GPUVendor = GPUVendor(row[8])
	if rec.CPUCount, err = strconv.Atoi(row[9]); err != nil {
		return rec, fmt.Errorf("parse cpu_count %q: %w", row[9], err)
	}
	if rec.Memory, err = parseFloat(row[10]); err != nil {
		return rec, fmt.Errorf("parse memory %q: %w", row[10], err)
	}
	if row[11] != "" {
		disk, err := parseFloat(row[11])
		if err != nil {
			return rec, fmt.Errorf("parse disk_size %q: %w", row[11], err)
		}
		rec.DiskSize = &disk
	}
	if rec.Available, err = strconv.ParseBool(row[12]); err != nil {
		return rec, fmt.Errorf("parse available %q: %w", row[12], err)
	}

	return rec, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatOptDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
