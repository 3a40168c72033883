package webgpu

import (
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// AdapterInfo describes a WebGPU adapter.
type AdapterInfo struct {
	Name       string
	Driver     string
	Type       string
	Backend    string
	Timestamps bool
}

// String returns a one line adapter description.
func (ai AdapterInfo) String() string {
	return ai.Name + " (" + ai.Backend + ")"
}

// Matches returns true if the adapter name contains any of the given
// case-insensitive patterns.
func (ai AdapterInfo) Matches(patterns []string) bool {
	name := strings.ToLower(ai.Name)
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(name, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func describeAdapter(adapter *wgpu.Adapter) AdapterInfo {
	info := adapter.GetInfo()
	return AdapterInfo{
		Name:       info.Name,
		Driver:     info.DriverDescription,
		Type:       info.AdapterType.String(),
		Backend:    info.BackendType.String(),
		Timestamps: adapter.HasFeature(wgpu.FeatureNameTimestampQuery),
	}
}

// ListAdapters returns the adapters exposed by the installed WebGPU drivers.
func ListAdapters() []AdapterInfo {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapters := instance.EnumerateAdapters(nil)
	list := make([]AdapterInfo, 0, len(adapters))
	for _, adapter := range adapters {
		list = append(list, describeAdapter(adapter))
		adapter.Release()
	}
	return list
}

// Pick the preferred high performance adapter unless it is blacklisted in
// which case fall back to the first adapter that is not.
func selectAdapter(instance *wgpu.Instance, blacklist []string) (*wgpu.Adapter, error) {
	preferred, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err == nil && !describeAdapter(preferred).Matches(blacklist) {
		return preferred, nil
	}
	if preferred != nil {
		preferred.Release()
	}

	var selected *wgpu.Adapter
	for _, adapter := range instance.EnumerateAdapters(nil) {
		if selected == nil && !describeAdapter(adapter).Matches(blacklist) {
			selected = adapter
			continue
		}
		adapter.Release()
	}
	if selected == nil {
		return nil, ErrNoAdapter
	}
	return selected, nil
}
