// Package nbeats is the deep-learning backend: a single generic N-BEATS
// style block, a fully connected ReLU network over a lookback window with a
// linear skip path, trained by mini-batch Adam and rolled forward one step
// at a time. Training is seeded and therefore reproducible.
package nbeats

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models"
	"github.com/derickschaefer/forecast/internal/recommend"
	"github.com/derickschaefer/forecast/internal/transform"
)

// ID is the registry identifier.
const ID = "nbeats"

const (
	hidden       = 32
	batchSize    = 32
	learningRate = 0.005
	beta1        = 0.9
	beta2        = 0.999
	epsilon      = 1e-8
)

// Config is the validated hyperparameter set.
type Config struct {
	InputChunk int
	Epochs     int
	Scaler     transform.ScaleMethod
	Seed       int64
}

// ConfigOf reads and validates params.
func ConfigOf(params model.Hyperparameters) (Config, error) {
	c := Config{
		InputChunk: params.Int("input_chunk_length", 5),
		Epochs:     params.Int("n_epochs", 10),
		Seed:       int64(params.Int("random_state", 22)),
	}
	if c.InputChunk < 1 {
		return c, badParam("input_chunk_length", c.InputChunk, "must be >= 1")
	}
	if c.Epochs < 1 {
		return c, badParam("n_epochs", c.Epochs, "must be >= 1")
	}
	method, err := transform.ParseScale(params.String("scaler_type", model.ScaleStandard))
	if err != nil {
		return c, badParam("scaler_type", params.String("scaler_type", ""), "must be standard, minmax or none")
	}
	c.Scaler = method
	return c, nil
}

func badParam(key string, v any, reason string) error {
	return &model.UnsupportedConfigurationError{Op: "nbeats", Key: key, Value: fmt.Sprint(v), Reason: reason}
}

// Model is the N-BEATS style backend.
type Model struct{}

// New returns the N-BEATS style backend.
func New() *Model { return &Model{} }

func (*Model) ID() string           { return ID }
func (*Model) Family() model.Family { return model.FamilyDeepLearning }
func (*Model) Description() string {
	return "N-BEATS style fully connected block over a lookback window"
}

func (*Model) Params() []models.ParamSpec {
	return []models.ParamSpec{
		{Name: "input_chunk_length", Kind: models.KindInt, Default: 5, Min: 3, Max: 30, Description: "lookback window in steps"},
		{Name: "n_epochs", Kind: models.KindInt, Default: 10, Min: 10, Max: 150, Description: "training passes over the windows"},
		{Name: "scaler_type", Kind: models.KindChoice, Default: model.ScaleStandard,
			Choices: []string{model.ScaleStandard, model.ScaleMinMax, model.ScaleNone}, Description: "input normalization"},
		{Name: "random_state", Kind: models.KindInt, Default: 22, Description: "seed for weight init and shuffling"},
	}
}

// MinTrain requires a handful of windows beyond the lookback.
func (*Model) MinTrain(params model.Hyperparameters) int {
	c, err := ConfigOf(params)
	if err != nil {
		return 15
	}
	return c.InputChunk + 10
}

func (m *Model) Recommend(p *model.SeriesProfile, opts recommend.Options) (model.Recommendation, error) {
	return models.FamilyRecommendation(m, p, opts)
}

// Fit trains the network on train.
func (m *Model) Fit(train model.TimeSeries, params model.Hyperparameters) (models.Fitted, error) {
	c, err := ConfigOf(params)
	if err != nil {
		return nil, err
	}
	vals, err := models.CleanValues("nbeats", train, m.MinTrain(params))
	if err != nil {
		return nil, err
	}
	scaler, err := transform.FitScaler(vals, c.Scaler)
	if err != nil {
		return nil, fmt.Errorf("nbeats: %w", err)
	}
	scaled := scaler.Transform(vals)

	rng := rand.New(rand.NewSource(c.Seed))
	net := newNetwork(c.InputChunk, rng)
	net.train(scaled, c.Epochs, rng)

	return &Fitted{Config: c, scaler: scaler, history: scaled, net: net}, nil
}

// ─── Network ──────────────────────────────────────────────────────────────────

// network stores every parameter in one flat slice:
// W1 (hidden×in), b1 (hidden), w2 (hidden), skip (in), b2.
type network struct {
	in    int
	theta []float64
}

func newNetwork(in int, rng *rand.Rand) *network {
	n := &network{in: in, theta: make([]float64, hidden*in+2*hidden+in+1)}
	scale1 := math.Sqrt(2 / float64(in))
	for i := 0; i < hidden*in; i++ {
		n.theta[i] = rng.NormFloat64() * scale1
	}
	scale2 := math.Sqrt(1 / float64(hidden))
	for i := range n.w2() {
		n.w2()[i] = rng.NormFloat64() * scale2
	}
	return n
}

func (n *network) w1(h int) []float64 { return n.theta[h*n.in : (h+1)*n.in] }
func (n *network) b1() []float64      { o := hidden * n.in; return n.theta[o : o+hidden] }
func (n *network) w2() []float64      { o := hidden*n.in + hidden; return n.theta[o : o+hidden] }
func (n *network) skip() []float64 {
	o := hidden*n.in + 2*hidden
	return n.theta[o : o+n.in]
}
func (n *network) b2() *float64 { return &n.theta[len(n.theta)-1] }

// forward returns the output and the hidden pre-activations.
func (n *network) forward(x []float64, pre []float64) float64 {
	b1, w2 := n.b1(), n.w2()
	y := *n.b2() + floats.Dot(n.skip(), x)
	for h := 0; h < hidden; h++ {
		a := b1[h] + floats.Dot(n.w1(h), x)
		pre[h] = a
		if a > 0 {
			y += w2[h] * a
		}
	}
	return y
}

// backward accumulates the gradient of scale·(y-t)² into grad.
func (n *network) backward(x, pre []float64, dy float64, grad []float64) {
	w2 := n.w2()
	gb1 := grad[hidden*n.in : hidden*n.in+hidden]
	gw2 := grad[hidden*n.in+hidden : hidden*n.in+2*hidden]
	gskip := grad[hidden*n.in+2*hidden : hidden*n.in+2*hidden+n.in]
	grad[len(grad)-1] += dy
	floats.AddScaled(gskip, dy, x)
	for h := 0; h < hidden; h++ {
		if pre[h] <= 0 {
			continue
		}
		gw2[h] += dy * pre[h]
		da := dy * w2[h]
		gb1[h] += da
		floats.AddScaled(grad[h*n.in:(h+1)*n.in], da, x)
	}
}

func (n *network) train(series []float64, epochs int, rng *rand.Rand) {
	windows := len(series) - n.in
	if windows < 1 {
		return
	}
	order := make([]int, windows)
	for i := range order {
		order[i] = i
	}
	grad := make([]float64, len(n.theta))
	m := make([]float64, len(n.theta))
	v := make([]float64, len(n.theta))
	pre := make([]float64, hidden)
	step := 0
	for e := 0; e < epochs; e++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for lo := 0; lo < windows; lo += batchSize {
			hi := min(lo+batchSize, windows)
			for i := range grad {
				grad[i] = 0
			}
			for _, s := range order[lo:hi] {
				x := series[s : s+n.in]
				y := n.forward(x, pre)
				n.backward(x, pre, 2*(y-series[s+n.in])/float64(hi-lo), grad)
			}
			step++
			c1 := 1 - math.Pow(beta1, float64(step))
			c2 := 1 - math.Pow(beta2, float64(step))
			for i, g := range grad {
				m[i] = beta1*m[i] + (1-beta1)*g
				v[i] = beta2*v[i] + (1-beta2)*g*g
				n.theta[i] -= learningRate * (m[i] / c1) / (math.Sqrt(v[i]/c2) + epsilon)
			}
		}
	}
}

// ─── Prediction ───────────────────────────────────────────────────────────────

// Fitted is a trained network with its input scaler.
type Fitted struct {
	Config  Config
	scaler  transform.Scaler
	history []float64
	net     *network
}

// Predict rolls the network forward horizon steps.
func (f *Fitted) Predict(horizon int) ([]float64, error) {
	if err := models.CheckHorizon("nbeats", horizon); err != nil {
		return nil, err
	}
	buf := append([]float64(nil), f.history...)
	pre := make([]float64, hidden)
	for h := 0; h < horizon; h++ {
		x := buf[len(buf)-f.net.in:]
		buf = append(buf, f.net.forward(x, pre))
	}
	return f.scaler.Inverse(buf[len(f.history):]), nil
}

// Loss returns the mean squared one-step error on the scaled training data.
func (f *Fitted) Loss() float64 {
	pre := make([]float64, hidden)
	n := len(f.history) - f.net.in
	if n < 1 {
		return math.NaN()
	}
	ss := 0.0
	for s := 0; s < n; s++ {
		d := f.net.forward(f.history[s:s+f.net.in], pre) - f.history[s+f.net.in]
		ss += d * d
	}
	return ss / float64(n)
}
