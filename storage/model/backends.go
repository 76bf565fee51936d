package model

// Backends groups all storage interfaces used by the application, so a
// single value can be passed around.
type Backends struct {
	Certificates CertificatesStore
	Rules        RulesStore
	Templates    TemplatesStore
	Attempts     AttemptsStore
	KV           KeyValueStore
	Users        UsersStore
}
