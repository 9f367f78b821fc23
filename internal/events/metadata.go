package events

import (
	"runtime"
)

// Metadata is a process environment snapshot (app version, OS, arch,
// locale) plus an open map of custom entries (spec.md §3).
type Metadata struct {
	AppVersion string            `json:"app_version"`
	OS         string            `json:"os"`
	Arch       string            `json:"arch"`
	Locale     string            `json:"locale,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
}

// processMetadata is filled in once at package init from the running
// process's environment; Builder copies it (with any custom entries merged
// in) into each event it constructs.
var processMetadata = Metadata{
	OS:   runtime.GOOS,
	Arch: runtime.GOARCH,
}

// SetAppVersion records the host application's version string, used as the
// default Metadata.AppVersion for every event built after this call.
func SetAppVersion(version string) {
	processMetadata.AppVersion = version
}

// SetLocale records the host process's locale, used as the default
// Metadata.Locale for every event built after this call.
func SetLocale(locale string) {
	processMetadata.Locale = locale
}

// defaultMetadata returns a fresh copy of the current process snapshot, safe
// for a caller to mutate (e.g. via Builder.WithCustom) without affecting
// other events.
func defaultMetadata() Metadata {
	m := processMetadata
	m.Custom = nil
	return m
}

func (m Metadata) clone() Metadata {
	out := m
	if m.Custom != nil {
		out.Custom = make(map[string]string, len(m.Custom))
		for k, v := range m.Custom {
			out.Custom[k] = v
		}
	}
	return out
}
