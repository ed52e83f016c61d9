package variance

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/fpa/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleTable() model.Table {
	return model.Table{
		Columns: []string{"Department", "Forecast", "Actual"},
		Rows: [][]string{
			{"Sales", "100000", "95000"},
			{"Marketing", "50000", "60000"},
			{"Engineering", "120000", "125000"},
			{"HR", "30000", "28000"},
			{"Finance", "40000", "45000"},
		},
	}
}

func TestCalculate_SampleScenario(t *testing.T) {
	a, err := NewCalculator(ZeroForecastMarker).Calculate(sampleTable())
	require.NoError(t, err)
	require.Len(t, a.Rows, 5)

	wantVariance := []string{"-5000", "10000", "5000", "-2000", "5000"}
	wantPct := []string{"-5.0", "20.0", "4.17", "-6.67", "12.5"}

	for i, row := range a.Rows {
		assert.True(t, row.Variance.Equal(dec(wantVariance[i])), "row %d variance = %s", i, row.Variance)
		require.True(t, row.VariancePercent.Valid, "row %d percent should be defined", i)
		assert.True(t, row.VariancePercent.Decimal.Equal(dec(wantPct[i])), "row %d percent = %s", i, row.VariancePercent.Decimal)
	}

	assert.Equal(t, []string{"Department", "Forecast", "Actual", "Variance", "Variance %"}, a.Columns)
	assert.Equal(t, "Sales", a.Rows[0].Category)
	assert.Equal(t, []string{"Sales", "100000", "95000", "-5000", "-5.00"}, a.Rows[0].Cells())
}

func TestApply_Definition(t *testing.T) {
	tests := []struct {
		forecast, actual string
		variance, pct    string
	}{
		{"100", "150", "50", "50"},
		{"100", "50", "-50", "-50"},
		{"3", "4", "1", "33.33"},
		{"3", "5", "2", "66.67"},
		{"-200", "-100", "100", "-50"},
		{"0.5", "0.75", "0.25", "50"},
		{"7", "7", "0", "0"},
		{"1e3", "1.5e3", "500", "50"},
		// ties go to the even digit
		{"800", "801", "1", "0.12"},
		{"800", "803", "3", "0.38"},
		{"800", "799", "-1", "-0.12"},
		{"400", "401", "1", "0.25"},
	}
	for _, tt := range tests {
		row := Apply(model.Record{Category: "X", Forecast: dec(tt.forecast), Actual: dec(tt.actual)})
		assert.True(t, row.Variance.Equal(dec(tt.variance)), "%s/%s variance = %s", tt.forecast, tt.actual, row.Variance)
		require.True(t, row.VariancePercent.Valid)
		assert.True(t, row.VariancePercent.Decimal.Equal(dec(tt.pct)), "%s/%s pct = %s", tt.forecast, tt.actual, row.VariancePercent.Decimal)
	}
}

func TestApply_ZeroForecastMarker(t *testing.T) {
	row := Apply(model.Record{Category: "New", Forecast: decimal.Zero, Actual: dec("1200")})
	assert.True(t, row.Variance.Equal(dec("1200")))
	assert.False(t, row.VariancePercent.Valid)
	assert.Equal(t, model.NotApplicable, model.FormatPercent(row.VariancePercent))
}

func TestCalculate_ZeroForecastMarker(t *testing.T) {
	tbl := model.Table{
		Columns: []string{"Department", "Forecast", "Actual"},
		Rows:    [][]string{{"Ops", "0", "500"}, {"HR", "100", "90"}},
	}
	a, err := NewCalculator("").Calculate(tbl)
	require.NoError(t, err)
	assert.False(t, a.Rows[0].VariancePercent.Valid)
	assert.True(t, a.Rows[1].VariancePercent.Valid)
	assert.Equal(t, []string{"Ops", "0", "500", "500", "N/A"}, a.Rows[0].Cells())
}

func TestCalculate_ZeroForecastStrict(t *testing.T) {
	tbl := model.Table{
		Columns: []string{"Department", "Forecast", "Actual"},
		Rows:    [][]string{{"HR", "100", "90"}, {"Ops", "0", "500"}},
	}
	_, err := NewCalculator(ZeroForecastError).Calculate(tbl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	assert.Contains(t, err.Error(), "record 2 (Ops)")
}

func TestCalculate_EmptyInput(t *testing.T) {
	_, err := NewCalculator("").Calculate(model.Table{Columns: []string{"Department", "Forecast", "Actual"}})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewCalculator("").Compute(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestCalculate_MissingColumns(t *testing.T) {
	// The bad cell in row 1 must never be reached: the schema check comes first.
	tbl := model.Table{
		Columns: []string{"Department", "Budget", "Actual"},
		Rows:    [][]string{{"Sales", "not-a-number", "x"}},
	}
	_, err := NewCalculator("").Calculate(tbl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.NotErrorIs(t, err, ErrInvalidValue)

	var mce *MissingColumnsError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"Forecast"}, mce.Missing)
	assert.Contains(t, err.Error(), "Department, Forecast, Actual")
}

func TestCheckSchema_CaseSensitive(t *testing.T) {
	err := CheckSchema([]string{"department", "forecast", "actual"})
	var mce *MissingColumnsError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"Department", "Forecast", "Actual"}, mce.Missing)
}

func TestCheckSchema_AlreadyAugmented(t *testing.T) {
	err := CheckSchema([]string{"Department", "Forecast", "Actual", "Variance"})
	assert.ErrorIs(t, err, ErrAlreadyAugmented)

	err = CheckSchema([]string{"Department", "Forecast", "Actual", "Variance %"})
	assert.ErrorIs(t, err, ErrAlreadyAugmented)

	assert.NoError(t, CheckSchema([]string{"Actual", "Notes", "Forecast", "Department"}))
}

func TestCalculate_ExtraColumnsPreserved(t *testing.T) {
	tbl := model.Table{
		Columns: []string{"Quarter", "Actual", "Department", "Forecast"},
		Rows:    [][]string{{"Q1", "110", "Sales", "100"}},
	}
	a, err := NewCalculator("").Calculate(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Quarter", "Actual", "Department", "Forecast", "Variance", "Variance %"}, a.Columns)
	assert.Equal(t, []string{"Q1", "110", "Sales", "100", "10", "10.00"}, a.Rows[0].Cells())
	assert.Equal(t, "Sales", a.Rows[0].Category)
}

func TestCalculate_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		row    []string
		column string
	}{
		{"non-numeric forecast", []string{"Sales", "abc", "10"}, "Forecast"},
		{"empty actual", []string{"Sales", "10", " "}, "Actual"},
		{"nan forecast", []string{"Sales", "NaN", "10"}, "Forecast"},
		{"inf actual", []string{"Sales", "10", "Inf"}, "Actual"},
		{"empty category", []string{"", "10", "10"}, "Department"},
		{"short row", []string{"Sales", "10"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := model.Table{
				Columns: []string{"Department", "Forecast", "Actual"},
				Rows:    [][]string{{"Ok", "1", "1"}, tt.row},
			}
			_, err := NewCalculator("").Calculate(tbl)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidValue)

			var re *RowError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, 3, re.Line)
			assert.Equal(t, tt.column, re.Column)
		})
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	calc := NewCalculator("")
	first, err := calc.Calculate(sampleTable())
	require.NoError(t, err)
	second, err := calc.Calculate(sampleTable())
	require.NoError(t, err)

	require.Len(t, second.Rows, len(first.Rows))
	for i := range first.Rows {
		assert.Equal(t, first.Rows[i].Cells(), second.Rows[i].Cells())
	}
}

func TestCalculate_DoesNotMutateInput(t *testing.T) {
	tbl := sampleTable()
	_, err := NewCalculator("").Calculate(tbl)
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), tbl)
}

func TestSummarize(t *testing.T) {
	a, err := NewCalculator("").Calculate(sampleTable())
	require.NoError(t, err)

	tot := Summarize(a)
	assert.True(t, tot.Forecast.Equal(dec("340000")))
	assert.True(t, tot.Actual.Equal(dec("353000")))
	assert.True(t, tot.Variance.Equal(dec("13000")))
	require.True(t, tot.VariancePercent.Valid)
	assert.True(t, tot.VariancePercent.Decimal.Equal(dec("3.82")))
	assert.Equal(t, 3, tot.Over)
	assert.Equal(t, 2, tot.Under)
}

func TestSummarize_RoundsHalfToEven(t *testing.T) {
	a := &model.Analysis{Rows: []model.Row{
		Apply(model.Record{Category: "A", Forecast: dec("500"), Actual: dec("500.5")}),
		Apply(model.Record{Category: "B", Forecast: dec("300"), Actual: dec("300.5")}),
	}}
	tot := Summarize(a)
	require.True(t, tot.VariancePercent.Valid)
	assert.Equal(t, "0.12", model.FormatPercent(tot.VariancePercent))
}

func TestSummarize_ZeroTotalForecast(t *testing.T) {
	a := &model.Analysis{Rows: []model.Row{Apply(model.Record{Category: "A", Actual: dec("10")})}}
	tot := Summarize(a)
	assert.False(t, tot.VariancePercent.Valid)
	assert.Equal(t, model.Totals{}, Summarize(nil))
}

func TestDuplicateCategories(t *testing.T) {
	tbl := model.Table{
		Columns: []string{"Department", "Forecast", "Actual"},
		Rows: [][]string{
			{"Sales", "1", "1"}, {"HR", "1", "1"}, {"Sales", "2", "2"}, {"Sales", "3", "3"}, {"HR", "1", "2"},
		},
	}
	a, err := NewCalculator("").Calculate(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sales", "HR"}, DuplicateCategories(a))

	a, err = NewCalculator("").Calculate(sampleTable())
	require.NoError(t, err)
	assert.Empty(t, DuplicateCategories(a))
}
