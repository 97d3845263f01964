package plugin

import (
	"fmt"
	"sort"

	"github.com/lumen-ml/lumen/internal/nn"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// Nets holds a plugin's named network modules (e.g. "encoder", "decoder",
// "vae"). The trainer collects optimizer parameters from here and the
// checkpointer serializes it.
type Nets[B tensor.Backend] struct {
	nets map[string]nn.Module[B]
}

// NewNets creates an empty network container.
func NewNets[B tensor.Backend]() *Nets[B] {
	return &Nets[B]{nets: make(map[string]nn.Module[B])}
}

// Set registers a network under a name, replacing any previous entry.
func (n *Nets[B]) Set(name string, module nn.Module[B]) {
	n.nets[name] = module
}

// Get returns the named network. Panics when absent since a missing net at
// routine time is a plugin programming error.
func (n *Nets[B]) Get(name string) nn.Module[B] {
	module, ok := n.nets[name]
	if !ok {
		panic(fmt.Sprintf("plugin: network %q not built", name))
	}
	return module
}

// Has reports whether a network is registered under the name.
func (n *Nets[B]) Has(name string) bool {
	_, ok := n.nets[name]
	return ok
}

// Names returns network names in sorted order.
func (n *Nets[B]) Names() []string {
	names := make([]string, 0, len(n.nets))
	for name := range n.nets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parameters returns the trainable parameters of every registered network,
// in sorted name order.
func (n *Nets[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, name := range n.Names() {
		params = append(params, n.nets[name].Parameters()...)
	}
	return params
}

// Losses holds the named scalar loss tensors a routine produced for the
// current batch (e.g. "vae" for the ELBO). Losses carry the computation
// graph so the trainer can run backward on them.
type Losses[B tensor.Backend] struct {
	losses map[string]*tensor.Tensor[float32, B]
}

// NewLosses creates an empty loss container.
func NewLosses[B tensor.Backend]() *Losses[B] {
	return &Losses[B]{losses: make(map[string]*tensor.Tensor[float32, B])}
}

// Set stores a loss under a name.
func (l *Losses[B]) Set(name string, loss *tensor.Tensor[float32, B]) {
	l.losses[name] = loss
}

// Get returns the named loss, or nil when the routine did not produce it.
func (l *Losses[B]) Get(name string) *tensor.Tensor[float32, B] {
	return l.losses[name]
}

// Names returns loss names in sorted order.
func (l *Losses[B]) Names() []string {
	names := make([]string, 0, len(l.losses))
	for name := range l.losses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops all losses. The trainer calls this between batches.
func (l *Losses[B]) Clear() {
	clear(l.losses)
}

// Results holds named scalar metrics for the current batch (e.g.
// "KL_divergence", "ms_ssim", "accuracy"). Values are plain numbers with no
// gradient history.
type Results struct {
	values map[string]float64
}

// NewResults creates an empty results container.
func NewResults() *Results {
	return &Results{values: make(map[string]float64)}
}

// Set stores a metric value.
func (r *Results) Set(name string, value float64) {
	r.values[name] = value
}

// Get returns a metric value and whether it was recorded.
func (r *Results) Get(name string) (float64, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Names returns metric names in sorted order.
func (r *Results) Names() []string {
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops all metrics.
func (r *Results) Clear() {
	clear(r.values)
}

// ImageVisual is a named batch of images exported for inspection.
type ImageVisual struct {
	Name  string
	Batch *tensor.RawTensor
}

// ScatterVisual is a named 2D projection of points (typically latent means)
// with optional integer class labels, one per point.
type ScatterVisual struct {
	Name   string
	Points *tensor.RawTensor
	Labels []int32
}

// Visuals collects inspection artifacts produced by Visualize. Exporting
// them (to disk, a dashboard, ...) is the caller's concern.
type Visuals struct {
	Images   []ImageVisual
	Scatters []ScatterVisual
}

// NewVisuals creates an empty visuals container.
func NewVisuals() *Visuals {
	return &Visuals{}
}

// AddImage records an image batch under a name.
func (v *Visuals) AddImage(batch *tensor.RawTensor, name string) {
	v.Images = append(v.Images, ImageVisual{Name: name, Batch: batch})
}

// AddScatter records a point cloud under a name with optional labels.
func (v *Visuals) AddScatter(points *tensor.RawTensor, labels []int32, name string) {
	v.Scatters = append(v.Scatters, ScatterVisual{Name: name, Points: points, Labels: labels})
}

// Clear drops all artifacts.
func (v *Visuals) Clear() {
	v.Images = v.Images[:0]
	v.Scatters = v.Scatters[:0]
}
