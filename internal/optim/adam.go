package optim

import (
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * grad
//	v_t = beta2 * v_{t-1} + (1-beta2) * grad²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param -= lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014).
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int
	m       map[*nn.Parameter[B]][]float32
	v       map[*nn.Parameter[B]][]float32
	backend B
}

// AdamConfig holds Adam hyperparameters. Zero values take the usual
// defaults: LR 0.001, Betas (0.9, 0.999), Eps 1e-8.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]][]float32),
		v:       make(map[*nn.Parameter[B]][]float32),
		backend: backend,
	}
}

// Step applies one Adam update. Parameters without a gradient are skipped
// but the timestep still advances once per call.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		data := param.Tensor().Data()

		m, ok := a.m[param]
		if !ok {
			m = make([]float32, len(data))
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, len(data))
			a.v[param] = v
		}

		for i := range data {
			g := grad[i]
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g

			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2

			data[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate, for scheduling.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// StateDict exports first/second moment buffers keyed "m.<index>" and
// "v.<index>", plus the timestep under "t" as a one-element tensor.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)

	step, err := tensor.NewRaw(tensor.Shape{1}, tensor.Int32, a.backend.Device())
	if err != nil {
		panic(err)
	}
	step.AsInt32()[0] = int32(a.t)
	stateDict["t"] = step

	export := func(prefix string, buffers map[*nn.Parameter[B]][]float32) {
		for i, param := range a.params {
			buf, ok := buffers[param]
			if !ok {
				continue
			}
			raw, err := tensor.NewRaw(param.Tensor().Shape(), tensor.Float32, a.backend.Device())
			if err != nil {
				panic(err)
			}
			copy(raw.AsFloat32(), buf)
			stateDict[fmt.Sprintf("%s.%d", prefix, i)] = raw
		}
	}
	export("m", a.m)
	export("v", a.v)

	return stateDict
}

// LoadStateDict restores moment buffers and the timestep.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if step, ok := stateDict["t"]; ok {
		if step.DType() != tensor.Int32 || step.NumElements() != 1 {
			return fmt.Errorf("invalid timestep tensor in optimizer state")
		}
		a.t = int(step.AsInt32()[0])
	}

	restore := func(prefix string, buffers map[*nn.Parameter[B]][]float32) error {
		for i, param := range a.params {
			raw, ok := stateDict[fmt.Sprintf("%s.%d", prefix, i)]
			if !ok {
				continue
			}
			if !raw.Shape().Equal(param.Tensor().Shape()) {
				return fmt.Errorf("%s shape mismatch for parameter %d: expected %v, got %v",
					prefix, i, param.Tensor().Shape(), raw.Shape())
			}
			buf := make([]float32, param.Tensor().NumElements())
			copy(buf, raw.AsFloat32())
			buffers[param] = buf
		}
		return nil
	}

	a.m = make(map[*nn.Parameter[B]][]float32)
	a.v = make(map[*nn.Parameter[B]][]float32)
	if err := restore("m", a.m); err != nil {
		return err
	}
	return restore("v", a.v)
}
