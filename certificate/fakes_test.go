package certificate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"github.com/typely/certify/artifact"
	"github.com/typely/certify/blob"
	"github.com/typely/certify/storage/model"
)

type fakeCertificates struct {
	mu            sync.Mutex
	byCode        map[string]*model.Certificate
	nextID        uint
	versionColumn bool
	// schema behavior
	hasVersionColumn bool
	missingColumn    string
	rejectModern     bool
	collisions       int
	insertErr        error
	inserts          int
}

func newFakeCertificates() *fakeCertificates {
	return &fakeCertificates{
		byCode:           map[string]*model.Certificate{},
		versionColumn:    true,
		hasVersionColumn: true,
	}
}

func (f *fakeCertificates) ByAttempt(_ context.Context, attemptID string) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byCode {
		if c.AttemptID == attemptID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCertificates) ByCode(_ context.Context, code string) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCertificates) CodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byCode[code]
	return ok, nil
}

func (f *fakeCertificates) Insert(_ context.Context, cert model.Certificate) model.InsertResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return model.InsertFailedWith(f.insertErr)
	}
	if f.missingColumn != "" {
		return model.InsertFailedWith(
			&model.DBError{
				Kind:       model.DBErrorMissingColumn,
				Constraint: "table certificates has no column named " + f.missingColumn,
				Err:        errors.New("table certificates has no column named " + f.missingColumn),
			},
		)
	}
	if !f.versionColumn {
		cert.TemplateVersion = nil
	} else if !f.hasVersionColumn {
		return model.InsertFailedWith(
			&model.DBError{
				Kind: model.DBErrorMissingColumn,
				Err:  errors.New("table certificates has no column named template_version"),
			},
		)
	}
	if f.rejectModern && IsModernCode(cert.Code) {
		return model.InsertFailedWith(
			&model.DBError{
				Kind:       model.DBErrorCheckViolation,
				Constraint: "certificates_code_format",
				Err:        errors.New("CHECK constraint failed: certificates_code_format"),
			},
		)
	}
	if f.collisions > 0 {
		f.collisions--
		return model.InsertFailedWith(
			&model.DBError{
				Kind:       model.DBErrorUniqueViolation,
				Constraint: "certificates_code_key",
				Err:        errors.New("duplicate key"),
			},
		)
	}
	for _, c := range f.byCode {
		if c.AttemptID == cert.AttemptID {
			cp := *c
			return model.AlreadyExists(&cp)
		}
	}
	f.nextID++
	cert.ID = f.nextID
	f.byCode[cert.Code] = &cert
	cp := cert
	return model.Inserted(&cp)
}

func (f *fakeCertificates) SupportsTemplateVersionColumn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versionColumn
}

func (f *fakeCertificates) DisableTemplateVersionColumn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionColumn = false
}

func (f *fakeCertificates) SetRevoked(
	_ context.Context, code string, revoked bool, reason *string, at *time.Time,
) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byCode[code]
	if !ok {
		return nil, model.NotFoundErrorFmt("certificate not found: %s", code)
	}
	c.IsRevoked = revoked
	c.RevokedReason = reason
	c.RevokedAt = at
	cp := *c
	return &cp, nil
}

func (f *fakeCertificates) SetStoragePath(_ context.Context, code string, p *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byCode[code]
	if !ok {
		return model.NotFoundErrorFmt("certificate not found: %s", code)
	}
	c.StoragePath = p
	return nil
}

func (f *fakeCertificates) ListByUser(_ context.Context, userID string) ([]model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Certificate
	for _, c := range f.byCode {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCertificates) List(context.Context, int, int) ([]model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Certificate
	for _, c := range f.byCode {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCertificates) ReferencedPaths(_ context.Context, paths []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, p := range paths {
		for _, c := range f.byCode {
			if c.StoragePath != nil && *c.StoragePath == p {
				out[p] = true
			}
		}
	}
	return out, nil
}

func (f *fakeCertificates) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byCode)
}

type fakeRules struct {
	rule *model.CertificateRule
	err  error
}

func (f *fakeRules) Active(context.Context) (*model.CertificateRule, error) { return f.rule, f.err }
func (f *fakeRules) List() ([]model.CertificateRule, error)               { return nil, nil }
func (f *fakeRules) Create(model.AddCertificateRule) (*model.CertificateRule, error) {
	return nil, nil
}
func (f *fakeRules) Get(string) (*model.CertificateRule, error) { return f.rule, nil }
func (f *fakeRules) Update(string, model.AddCertificateRule) (*model.CertificateRule, error) {
	return nil, nil
}
func (f *fakeRules) Delete(string) error { return nil }

type fakeTemplates struct {
	template *model.CertificateTemplate
}

func (f *fakeTemplates) Active(context.Context) (*model.CertificateTemplate, error) {
	return f.template, nil
}
func (f *fakeTemplates) ByID(_ context.Context, id uint) (*model.CertificateTemplate, error) {
	if f.template != nil && f.template.ID == id {
		return f.template, nil
	}
	return nil, nil
}
func (f *fakeTemplates) List() ([]model.CertificateTemplate, error) { return nil, nil }
func (f *fakeTemplates) Create(model.AddCertificateTemplate) (*model.CertificateTemplate, error) {
	return nil, nil
}
func (f *fakeTemplates) Get(string) (*model.CertificateTemplate, error) { return f.template, nil }
func (f *fakeTemplates) Update(string, model.AddCertificateTemplate) (*model.CertificateTemplate, error) {
	return nil, nil
}
func (f *fakeTemplates) Delete(string) error { return nil }

type fakeAttempts struct {
	attempts map[string]model.Attempt
	names    map[string]string
}

func (f *fakeAttempts) Get(_ context.Context, id string) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, model.NotFoundErrorFmt("attempt not found: %s", id)
	}
	return &a, nil
}

func (f *fakeAttempts) StudentName(_ context.Context, userID string) (string, error) {
	if n, ok := f.names[userID]; ok {
		return n, nil
	}
	return model.DefaultStudentName, nil
}

type fakeKV struct {
	mu     sync.Mutex
	values map[string]datatypes.JSON
}

func (f *fakeKV) Get(scope, key string) (datatypes.JSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[scope+"/"+key], nil
}

func (f *fakeKV) Set(scope, key string, value datatypes.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]datatypes.JSON{}
	}
	f.values[scope+"/"+key] = value
	return nil
}

func (f *fakeKV) Delete(scope, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, scope+"/"+key)
	return nil
}

func (f *fakeKV) GetAs(scope, key string, out any) (bool, error) {
	raw, _ := f.Get(scope, key)
	if raw == nil {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeKV) SetAny(scope, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.Set(scope, key, b)
}

type fakeBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	deleted    []string
	failUpload bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Upload(_ context.Context, p string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return errors.New("object storage unavailable")
	}
	f.objects[p] = data
	return nil
}

func (f *fakeBlobs) Download(_ context.Context, p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.objects[p]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return d, nil
}

func (f *fakeBlobs) Delete(_ context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, p)
	f.deleted = append(f.deleted, p)
	return nil
}

func (f *fakeBlobs) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p := range f.objects {
		out = append(out, p)
	}
	return out
}

type fakeBuilder struct {
	mu       sync.Mutex
	requests []artifact.Request
	err      error
	gate     *sync.WaitGroup
}

func (f *fakeBuilder) Build(_ context.Context, req artifact.Request) ([]byte, error) {
	if f.gate != nil {
		f.gate.Done()
		f.gate.Wait()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-" + req.Code), nil
}

func (f *fakeBuilder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
