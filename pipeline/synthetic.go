package pipeline

import (
	"math"
	"math/rand"
	"strconv"
)

// FeatureColumns is the column order of the credit dataset.
var FeatureColumns = []string{
	"Age", "Income", "Credit_Score", "Employment_Years", "Debt_to_Income",
	"Loan_Amount", "Education", "Marital_Status", "Previous_Default",
}

// CategoricalColumns are the non-numeric columns of FeatureColumns.
var CategoricalColumns = []string{"Education", "Marital_Status", "Previous_Default"}

type weighted struct {
	values  []string
	weights []float64
}

var (
	educations    = weighted{[]string{"High School", "Bachelor", "Graduate", "Other"}, []float64{0.35, 0.35, 0.25, 0.05}}
	maritalStatus = weighted{[]string{"Single", "Married", "Divorced"}, []float64{0.4, 0.5, 0.1}}
	prevDefault   = weighted{[]string{"No", "Yes"}, []float64{0.9, 0.1}}
)

// Latent cluster centres over (income, credit score, debt ratio, tenure).
// Non-default clusters sit at high credit score and low debt ratio.
var centroids = [2][2][4]float64{
	{{+1, +1, -1, +1}, {-1, +1, -1, -1}},
	{{-1, -1, +1, -1}, {+1, -1, +1, +1}},
}

const (
	defaultRate = 0.15
	flipRate    = 0.01
)

// GenerateSynthetic builds a labelled credit dataset of n rows. A latent
// two-class problem (two gaussian clusters per class, 15% positives, 1%
// label noise) drives the informative numeric columns; age and loan amount
// are noise; categorical columns are drawn independently. The final label
// is also set whenever Debt_to_Income > 1 or Credit_Score < 550.
// The same seed always produces the same dataset.
func GenerateSynthetic(n int, seed int64) *Dataset {
	rnd := rand.New(rand.NewSource(seed))
	ds := &Dataset{
		Columns:     append([]string(nil), FeatureColumns...),
		LabelColumn: DefaultLabelColumn,
		Rows:        make([][]string, 0, n),
		Labels:      make([]int, 0, n),
	}
	for i := 0; i < n; i++ {
		class := 0
		if rnd.Float64() < defaultRate {
			class = 1
		}
		c := centroids[class][rnd.Intn(2)]
		var z [4]float64
		for k := range z {
			z[k] = c[k] + rnd.NormFloat64()
		}
		if rnd.Float64() < flipRate {
			class = rnd.Intn(2)
		}

		age := clampInt(int(rnd.NormFloat64()*12+45), 18, 90)
		income := clampInt(int(z[0]*20000+50000), 8000, 250000)
		creditScore := clampInt(int(z[1]*100+650), 300, 850)
		debtRatio := clampFloat(0.35+0.25*z[2], 0, 3)
		tenure := clampInt(int(5+3*z[3]), 0, 40)
		loan := clampInt(int(math.Abs(rnd.NormFloat64())*10000), 500, 100000)

		label := class
		if debtRatio > 1.0 || creditScore < 550 {
			label = 1
		}

		ds.Rows = append(ds.Rows, []string{
			strconv.Itoa(age),
			strconv.Itoa(income),
			strconv.Itoa(creditScore),
			strconv.Itoa(tenure),
			strconv.FormatFloat(debtRatio, 'f', 4, 64),
			strconv.Itoa(loan),
			educations.pick(rnd),
			maritalStatus.pick(rnd),
			prevDefault.pick(rnd),
		})
		ds.Labels = append(ds.Labels, label)
	}
	return ds
}

func (w weighted) pick(rnd *rand.Rand) string {
	r := rnd.Float64()
	acc := 0.0
	for i, p := range w.weights {
		acc += p
		if r < acc {
			return w.values[i]
		}
	}
	return w.values[len(w.values)-1]
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ExampleApplicant is a low-risk applicant: good credit score, high income,
// low debt ratio and no previous default.
func ExampleApplicant() map[string]any {
	return map[string]any{
		"Age":              35,
		"Income":           85000,
		"Credit_Score":     750,
		"Employment_Years": 10,
		"Debt_to_Income":   0.15,
		"Loan_Amount":      10000,
		"Education":        "Graduate",
		"Marital_Status":   "Married",
		"Previous_Default": "No",
	}
}
