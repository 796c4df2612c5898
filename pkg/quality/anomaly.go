package quality

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// NumericAnomaly flags values more than threshold sample standard
// deviations from the field mean. The statistics cover the whole
// dataset, so the rule is dataset-scoped and costs O(record count)
// memory. A value that cannot be read as a number is a rule execution
// error; absent and null values pass.
func NumericAnomaly(id, field string, threshold float64, severity Severity) Rule {
	return DatasetRule(id, severity, fmt.Sprintf("%s must stay within %v standard deviations of its mean", field, threshold),
		func() Accumulator { return &numericAnomalyAccumulator{field: field, threshold: threshold} })
}

// VolumeAnomaly flags values whose share of the field's absolute total
// exceeds thresholdPct percent. Shares are rounded to two decimals
// before the comparison.
func VolumeAnomaly(id, field string, thresholdPct float64, severity Severity) Rule {
	return DatasetRule(id, severity, fmt.Sprintf("no single %s value may exceed %v%% of the field total", field, thresholdPct),
		func() Accumulator { return &volumeAnomalyAccumulator{field: field, threshold: thresholdPct} })
}

// BenfordDeviation compares the first significant digits of the field
// against Benford's law and reports one dataset-level finding when the
// chi-square statistic exceeds critical. A clean pass says nothing; a
// finding suggests the values were fabricated or manipulated.
func BenfordDeviation(id, field string, critical float64, severity Severity) Rule {
	return DatasetRule(id, severity, fmt.Sprintf("first digits of %s must follow Benford's law", field),
		func() Accumulator { return &benfordAccumulator{field: field, critical: critical} })
}

type numericSample struct {
	index int
	value float64
}

type numericAnomalyAccumulator struct {
	field     string
	threshold float64
	samples   []numericSample
	faults    []Finding
}

func (a *numericAnomalyAccumulator) Observe(_ context.Context, index int, record schema.Record) {
	value, present := record[a.field]
	if !present || value == nil {
		return
	}
	n, err := schema.Coerce(schema.Field{Name: a.field, Type: schema.FieldTypeFloat}, value)
	if err != nil {
		a.faults = append(a.faults, Finding{
			RecordIndex: index,
			Value:       value,
			Message:     fmt.Sprintf("anomaly check needs a numeric value: %v", err),
			Err:         err,
		})
		return
	}
	a.samples = append(a.samples, numericSample{index: index, value: n.(float64)})
}

func (a *numericAnomalyAccumulator) Finalize(context.Context) []Finding {
	findings := append([]Finding(nil), a.faults...)
	if len(a.samples) >= 2 {
		mean, std := sampleStats(a.samples)
		if std > 0 {
			for _, s := range a.samples {
				z := math.Abs(s.value-mean) / std
				if z > a.threshold {
					findings = append(findings, Finding{
						RecordIndex: s.index,
						Value:       s.value,
						Message:     fmt.Sprintf("value %v is %.2f standard deviations from the mean %.2f of field %s", s.value, z, mean, a.field),
					})
				}
			}
		}
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].RecordIndex < findings[j].RecordIndex })
	return findings
}

func (a *numericAnomalyAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*numericAnomalyAccumulator)
	if !ok {
		return fmt.Errorf("cannot merge %T into numericAnomalyAccumulator", other)
	}
	a.samples = append(a.samples, o.samples...)
	a.faults = append(a.faults, o.faults...)
	return nil
}

// sampleStats returns the mean and the sample standard deviation.
func sampleStats(samples []numericSample) (mean, std float64) {
	for _, s := range samples {
		mean += s.value
	}
	mean /= float64(len(samples))
	var ss float64
	for _, s := range samples {
		d := s.value - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(samples)-1))
}

type volumeAnomalyAccumulator struct {
	field     string
	threshold float64
	samples   []numericSample
	faults    []Finding
}

func (a *volumeAnomalyAccumulator) Observe(_ context.Context, index int, record schema.Record) {
	value, present := record[a.field]
	if !present || value == nil {
		return
	}
	n, err := schema.Coerce(schema.Field{Name: a.field, Type: schema.FieldTypeFloat}, value)
	if err != nil {
		a.faults = append(a.faults, Finding{
			RecordIndex: index,
			Value:       value,
			Message:     fmt.Sprintf("volume check needs a numeric value: %v", err),
			Err:         err,
		})
		return
	}
	a.samples = append(a.samples, numericSample{index: index, value: n.(float64)})
}

func (a *volumeAnomalyAccumulator) Finalize(context.Context) []Finding {
	findings := append([]Finding(nil), a.faults...)
	var total float64
	for _, s := range a.samples {
		total += math.Abs(s.value)
	}
	if total > 0 {
		for _, s := range a.samples {
			share := math.Round(10000*math.Abs(s.value)/total) / 100
			if share > a.threshold {
				findings = append(findings, Finding{
					RecordIndex: s.index,
					Value:       s.value,
					Message:     fmt.Sprintf("value %v is %.2f%% of the %s total, above %v%%", s.value, share, a.field, a.threshold),
				})
			}
		}
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].RecordIndex < findings[j].RecordIndex })
	return findings
}

func (a *volumeAnomalyAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*volumeAnomalyAccumulator)
	if !ok {
		return fmt.Errorf("cannot merge %T into volumeAnomalyAccumulator", other)
	}
	a.samples = append(a.samples, o.samples...)
	a.faults = append(a.faults, o.faults...)
	return nil
}

// benfordExpected is the probability of each first significant digit,
// 1 through 9, under Benford's law.
var benfordExpected = [9]float64{0.301, 0.176, 0.125, 0.097, 0.079, 0.067, 0.058, 0.051, 0.046}

type benfordAccumulator struct {
	field    string
	critical float64
	counts   [9]int
}

func (a *benfordAccumulator) Observe(_ context.Context, _ int, record schema.Record) {
	value, present := record[a.field]
	if !present || value == nil {
		return
	}
	if d, ok := firstSignificantDigit(fmt.Sprintf("%v", value)); ok {
		a.counts[d-1]++
	}
}

func (a *benfordAccumulator) Finalize(context.Context) []Finding {
	total := 0
	for _, n := range a.counts {
		total += n
	}
	if total == 0 {
		return nil
	}
	var stat float64
	for i, n := range a.counts {
		observed := float64(n) / float64(total)
		d := observed - benfordExpected[i]
		stat += d * d / benfordExpected[i]
	}
	if stat <= a.critical {
		return nil
	}
	return []Finding{{
		RecordIndex: DatasetIndex,
		Value:       stat,
		Message:     fmt.Sprintf("first-digit distribution of %s deviates from Benford's law (chi-square %.3f, critical %.3f)", a.field, stat, a.critical),
	}}
}

func (a *benfordAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*benfordAccumulator)
	if !ok {
		return fmt.Errorf("cannot merge %T into benfordAccumulator", other)
	}
	for i, n := range o.counts {
		a.counts[i] += n
	}
	return nil
}

// firstSignificantDigit scans the rendered value for its first nonzero
// digit. Signs, zeros, and decimal points are skipped; a value with no
// digit in 1..9 is not counted.
func firstSignificantDigit(s string) (int, bool) {
	for _, r := range s {
		if r >= '1' && r <= '9' {
			return int(r - '0'), true
		}
	}
	return 0, false
}
