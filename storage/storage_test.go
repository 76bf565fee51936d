package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typely/certify/storage/model"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(
		Config{
			Driver:  DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	require.NoError(t, err)
	return s
}

func testCertificate(code, attemptID string) model.Certificate {
	v := 3
	return model.Certificate{
		Code:            code,
		UserID:          "user-1",
		AttemptID:       attemptID,
		TemplateID:      1,
		WPM:             52,
		Accuracy:        96.5,
		TestType:        model.TestTypeTimed,
		IssuedAt:        time.Now().UTC(),
		TemplateVersion: &v,
	}
}

func TestCertificatesStorage_Insert(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	certs := s.CertificatesStorage()
	require.True(t, certs.SupportsTemplateVersionColumn())

	res := certs.Insert(ctx, testCertificate("TYP-20260101-AB12", "attempt-1"))
	require.Equal(t, model.InsertInserted, res.Status)
	require.NotNil(t, res.Certificate)
	assert.Equal(t, 3, res.Certificate.Version())

	t.Run("same attempt resolves to existing row", func(t *testing.T) {
		res := certs.Insert(ctx, testCertificate("TYP-20260101-ZZ99", "attempt-1"))
		require.Equal(t, model.InsertAlreadyExists, res.Status)
		assert.Equal(t, "TYP-20260101-AB12", res.Certificate.Code)
	})

	t.Run("code collision is a unique violation", func(t *testing.T) {
		res := certs.Insert(ctx, testCertificate("TYP-20260101-AB12", "attempt-2"))
		require.Equal(t, model.InsertFailed, res.Status)
		var dbErr *model.DBError
		require.ErrorAs(t, res.Err, &dbErr)
		assert.Equal(t, model.DBErrorUniqueViolation, dbErr.Kind)
	})

	exists, err := certs.CodeExists(ctx, "TYP-20260101-AB12")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = certs.CodeExists(ctx, "TYP-20260101-0000")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCertificatesStorage_Revocation(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	certs := s.CertificatesStorage()
	require.Equal(t, model.InsertInserted, certs.Insert(ctx, testCertificate("TYP-20260101-AB12", "attempt-1")).Status)

	reason := "plagiarism"
	at := time.Now().UTC()
	c, err := certs.SetRevoked(ctx, "TYP-20260101-AB12", true, &reason, &at)
	require.NoError(t, err)
	assert.True(t, c.IsRevoked)

	stored, err := certs.ByCode(ctx, "TYP-20260101-AB12")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsRevoked)
	require.NotNil(t, stored.RevokedReason)
	assert.Equal(t, reason, *stored.RevokedReason)
	assert.NotNil(t, stored.RevokedAt)

	_, err = certs.SetRevoked(ctx, "TYP-20260101-AB12", false, nil, nil)
	require.NoError(t, err)
	stored, err = certs.ByCode(ctx, "TYP-20260101-AB12")
	require.NoError(t, err)
	assert.False(t, stored.IsRevoked)
	assert.Nil(t, stored.RevokedReason)
	assert.Nil(t, stored.RevokedAt)

	_, err = certs.SetRevoked(ctx, "TYP-20260101-0000", true, &reason, &at)
	var nf model.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCertificatesStorage_StoragePaths(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	certs := s.CertificatesStorage()
	require.Equal(t, model.InsertInserted, certs.Insert(ctx, testCertificate("TYP-20260101-AB12", "attempt-1")).Status)

	p := "user-1/2026-01-01/typely-certificate-TYP-20260101-AB12.pdf"
	require.NoError(t, certs.SetStoragePath(ctx, "TYP-20260101-AB12", &p))
	assert.Error(t, certs.SetStoragePath(ctx, "TYP-20260101-0000", &p))

	refs, err := certs.ReferencedPaths(ctx, []string{p, "user-1/2026-01-01/orphan.pdf"})
	require.NoError(t, err)
	assert.True(t, refs[p])
	assert.False(t, refs["user-1/2026-01-01/orphan.pdf"])

	list, err := certs.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].HasStoredArtifact())
}

const legacyCertificatesTable = `CREATE TABLE certificates (
	id integer PRIMARY KEY AUTOINCREMENT,
	created_at datetime,
	updated_at datetime,
	code text NOT NULL UNIQUE CONSTRAINT certificates_code_format CHECK (code GLOB 'TYP-[0-9][0-9][0-9][0-9]-[0-9][0-9][0-9][0-9][0-9][0-9]'),
	user_id text NOT NULL,
	attempt_id text NOT NULL UNIQUE,
	template_id integer,
	wpm integer,
	accuracy numeric,
	test_type text,
	issued_at datetime,
	storage_path text,
	is_revoked numeric DEFAULT false,
	revoked_at datetime,
	revoked_reason text
)`

func newLegacyStorage(t *testing.T) *Storage {
	t.Helper()
	cfg := Config{
		Driver:         DriverSQLite,
		DSN:            filepath.Join(t.TempDir(), "legacy.db"),
		SkipMigrations: true,
	}
	db, err := Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Exec(legacyCertificatesTable).Error)
	s, err := NewStorageFromDB(db, cfg)
	require.NoError(t, err)
	return s
}

func TestCertificatesStorage_LegacySchema(t *testing.T) {
	ctx := context.Background()
	s := newLegacyStorage(t)
	certs := s.CertificatesStorage()
	assert.False(t, certs.SupportsTemplateVersionColumn())

	res := certs.Insert(ctx, testCertificate("TYP-20260101-AB12", "attempt-1"))
	require.Equal(t, model.InsertFailed, res.Status)
	var dbErr *model.DBError
	require.ErrorAs(t, res.Err, &dbErr)
	assert.Equal(t, model.DBErrorCheckViolation, dbErr.Kind)
	assert.True(t, dbErr.IsCodeFormatViolation())

	res = certs.Insert(ctx, testCertificate("TYP-2026-000042", "attempt-1"))
	require.Equal(t, model.InsertInserted, res.Status)
	assert.Nil(t, res.Certificate.TemplateVersion)
	assert.Equal(t, model.DefaultTemplateVersion, res.Certificate.Version())

	stored, err := certs.ByAttempt(ctx, "attempt-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "TYP-2026-000042", stored.Code)
}

func TestCertificatesStorage_ColumnDroppedAfterProbe(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	certs := s.CertificatesStorage()
	require.True(t, certs.SupportsTemplateVersionColumn())
	require.NoError(t, s.DB().Exec("ALTER TABLE certificates DROP COLUMN template_version").Error)

	res := certs.Insert(ctx, testCertificate("TYP-20260101-AB12", "attempt-1"))
	require.Equal(t, model.InsertFailed, res.Status)
	var dbErr *model.DBError
	require.ErrorAs(t, res.Err, &dbErr)
	assert.Equal(t, model.DBErrorMissingColumn, dbErr.Kind)

	certs.DisableTemplateVersionColumn()
	res = certs.Insert(ctx, testCertificate("TYP-20260101-AB12", "attempt-1"))
	assert.Equal(t, model.InsertInserted, res.Status)
}

func TestCertificatesStorage_MissingRelation(t *testing.T) {
	cfg := Config{
		Driver:         DriverSQLite,
		DataDir:        t.TempDir(),
		SkipMigrations: true,
	}
	s, err := NewStorage(cfg)
	require.NoError(t, err)

	_, err = s.CertificatesStorage().ByCode(context.Background(), "TYP-20260101-AB12")
	var dbErr *model.DBError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, model.DBErrorMissingRelation, dbErr.Kind)
}

func TestRulesStorage(t *testing.T) {
	ctx := context.Background()
	rules := newTestStorage(t).RulesStorage()

	active, err := rules.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	first, err := rules.Create(model.AddCertificateRule{MinWPM: 45, MinAccuracy: 90, TestType: "timed"})
	require.NoError(t, err)
	assert.True(t, first.Enabled)

	disabled := false
	_, err = rules.Create(model.AddCertificateRule{MinWPM: 80, MinAccuracy: 99, TestType: " HARD ", Enabled: &disabled})
	require.NoError(t, err)

	active, err = rules.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	second, err := rules.Create(model.AddCertificateRule{MinWPM: 30, MinAccuracy: 85, TestType: "all"})
	require.NoError(t, err)
	active, err = rules.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, model.TestTypeAll, active.TestType)

	_, err = rules.Get("nope")
	var nf model.NotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, rules.Delete("999"), &nf)
}

func TestTemplatesStorage(t *testing.T) {
	ctx := context.Background()
	templates := newTestStorage(t).TemplatesStorage()

	_, err := templates.Create(model.AddCertificateTemplate{Title: "No background", IsActive: true})
	require.NoError(t, err)
	active, err := templates.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	bg := "https://cdn.typely.test/bg.png"
	first, err := templates.Create(model.AddCertificateTemplate{Title: "Classic", BackgroundImageURL: &bg, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.True(t, first.ShowWPM)

	noWPM := false
	second, err := templates.Create(
		model.AddCertificateTemplate{Title: "Modern", BackgroundImageURL: &bg, IsActive: true, ShowWPM: &noWPM},
	)
	require.NoError(t, err)
	assert.False(t, second.ShowWPM)

	active, err = templates.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	updated, err := templates.Update(
		"1", model.AddCertificateTemplate{Title: "No background", BackgroundImageURL: &bg, IsActive: true},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	active, err = templates.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, active.ID)

	byID, err := templates.ByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, byID)
}

func TestAttemptsStorage(t *testing.T) {
	ctx := context.Background()
	attempts := newTestStorage(t).AttemptsStorage()

	_, err := attempts.Get(ctx, "missing")
	var nf model.NotFoundError
	assert.ErrorAs(t, err, &nf)

	require.NoError(t, attempts.Save(model.Attempt{ID: "a-1", UserID: "u-1", WPM: 50.4, Accuracy: 97, TestType: "timed"}))
	a, err := attempts.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", a.UserID)

	name, err := attempts.StudentName(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultStudentName, name)

	require.NoError(t, attempts.SaveProfile(model.Profile{UserID: "u-1", DisplayName: "Ada"}))
	name, err = attempts.StudentName(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)
}

func TestIssuanceSettings(t *testing.T) {
	kv := newTestStorage(t).Settings()

	enabled, err := IssuanceEnabled(kv)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, SetIssuanceEnabled(kv, false))
	enabled, err = IssuanceEnabled(kv)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, SetLogoURL(kv, "https://cdn.typely.test/logo.svg"))
	logo, err := GetLogoURL(kv)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.typely.test/logo.svg", logo)

	require.NoError(t, SetLogoURL(kv, ""))
	logo, err = GetLogoURL(kv)
	require.NoError(t, err)
	assert.Empty(t, logo)

	require.NoError(t, SetLogoURL(kv, "https://cdn.typely.test/logo2.svg"))
	logo, err = GetLogoURL(kv)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.typely.test/logo2.svg", logo)
}

func TestUsersStorage(t *testing.T) {
	users := newTestStorage(t).UsersStorage()

	n, err := users.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = users.Create("admin", "s3cret", "Admin")
	require.NoError(t, err)
	_, err = users.Create("admin", "other", "")
	var exists model.AlreadyExistsError
	assert.ErrorAs(t, err, &exists)

	u, err := users.Authenticate(" Admin ", "s3cret")
	require.NoError(t, err)
	assert.Empty(t, u.PasswordHash)
	assert.NotNil(t, u.LastLoginAt)
	_, err = users.Authenticate("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Authenticate("nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	disabled := true
	_, err = users.Update("admin", nil, nil, &disabled)
	require.NoError(t, err)
	_, err = users.Authenticate("admin", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	list, err := users.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].PasswordHash)

	require.NoError(t, users.Delete("ADMIN"))
	var notFound model.NotFoundError
	assert.ErrorAs(t, users.Delete("admin"), &notFound)
}

func TestPasswordHash(t *testing.T) {
	params := Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32, SaltLen: 16}
	h, err := newPasswordHash("correct horse", params)
	require.NoError(t, err)

	parsed, err := parsePasswordHash(h.String())
	require.NoError(t, err)
	assert.True(t, parsed.matches("correct horse"))
	assert.False(t, parsed.matches("battery staple"))
	assert.False(t, parsed.outdated(params))
	assert.True(t, parsed.outdated(Argon2idParams{Time: 2, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32, SaltLen: 16}))

	for _, bad := range []string{"", "$argon2i$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=19$m=x$a$b", "$argon2id$v=19$m=1,t=1,p=1$a"} {
		_, err = parsePasswordHash(bad)
		assert.Error(t, err, bad)
	}
}

func TestSettingsStorage_MissingTable(t *testing.T) {
	s, err := NewStorage(
		Config{
			Driver:         DriverSQLite,
			DataDir:        t.TempDir(),
			SkipMigrations: true,
		},
	)
	require.NoError(t, err)

	_, err = IssuanceEnabled(s.Settings())
	var dbErr *model.DBError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, model.DBErrorMissingRelation, dbErr.Kind)
}

func TestClassifyError_MissingColumnNamesColumn(t *testing.T) {
	s := newLegacyStorage(t)

	err := s.DB().Exec("INSERT INTO certificates (code, template_version) VALUES ('TYP-2026-000001', 1)").Error
	require.Error(t, err)
	dbErr := classifyError(err)
	assert.Equal(t, model.DBErrorMissingColumn, dbErr.Kind)
	assert.True(t, dbErr.IsMissingColumn(model.ColumnTemplateVersion))

	err = s.DB().Exec("INSERT INTO certificates (code, no_such_column) VALUES ('TYP-2026-000002', 1)").Error
	require.Error(t, err)
	dbErr = classifyError(err)
	assert.Equal(t, model.DBErrorMissingColumn, dbErr.Kind)
	assert.True(t, dbErr.IsMissingColumn("no_such_column"))
	assert.False(t, dbErr.IsMissingColumn(model.ColumnTemplateVersion))
}
