package credentials_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	netatmo "github.com/cgtobi/netatmo-api-go"
	"github.com/cgtobi/netatmo-api-go/internal/credentials"
)

var _ = Describe("Manager", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewManager", func() {
		It("creates a manager with an override directory", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr).NotTo(BeNil())
			Expect(mgr.Path()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
		})

		It("creates missing directories with owner-only permissions", func() {
			dir := filepath.Join(tmpDir, "nested", "netatmo")
			_, err := credentials.NewManager(dir)
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o700)))
		})
	})

	Describe("Load", func() {
		It("returns nil when no file exists", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cred, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cred).To(BeNil())
		})

		It("loads an existing credential", func() {
			data := `access_token = "A1"
refresh_token = "R1"
expires_at = 1712345678
scope = ["read_station", "read_camera"]
`
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cred, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cred).NotTo(BeNil())
			Expect(cred.AccessToken).To(Equal("A1"))
			Expect(cred.RefreshToken).To(Equal("R1"))
			Expect(cred.ExpiresAt.Unix()).To(Equal(int64(1712345678)))
			Expect(cred.Scope).To(Equal([]netatmo.Scope{
				netatmo.ScopeReadStation,
				netatmo.ScopeReadCamera,
			}))
		})

		It("returns nil for a file without an access token", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte(`refresh_token = "R1"`), 0o600)
			Expect(err).NotTo(HaveOccurred())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cred, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cred).To(BeNil())
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte("not valid [[["), 0o600)
			Expect(err).NotTo(HaveOccurred())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cred, err := mgr.Load()
			Expect(err).To(HaveOccurred())
			Expect(cred).To(BeNil())
		})
	})

	Describe("Save", func() {
		It("persists the credential with restricted permissions", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = mgr.Save(&netatmo.Credential{
				AccessToken:  "A1",
				RefreshToken: "R1",
				ExpiresAt:    time.Unix(1712345678, 0),
				Scope:        []netatmo.Scope{netatmo.ScopeReadStation},
			})
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(mgr.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("round-trips through Load", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			in := &netatmo.Credential{
				AccessToken:  "A1",
				RefreshToken: "R1",
				ExpiresAt:    time.Unix(1712345678, 0),
				Scope:        []netatmo.Scope{netatmo.ScopeReadStation, netatmo.ScopeReadThermostat},
			}
			Expect(mgr.Save(in)).To(Succeed())

			got, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.AccessToken).To(Equal(in.AccessToken))
			Expect(got.RefreshToken).To(Equal(in.RefreshToken))
			Expect(got.ExpiresAt.Unix()).To(Equal(in.ExpiresAt.Unix()))
			Expect(got.Scope).To(Equal(in.Scope))
		})

		It("replaces a previous credential", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.Save(&netatmo.Credential{AccessToken: "A1", RefreshToken: "R1"})).To(Succeed())
			Expect(mgr.Save(&netatmo.Credential{AccessToken: "A2", RefreshToken: "R2"})).To(Succeed())

			got, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(got.AccessToken).To(Equal("A2"))
		})

		It("leaves no temp file behind", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.Save(&netatmo.Credential{AccessToken: "A1"})).To(Succeed())

			entries, err := os.ReadDir(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal("credentials.toml"))
		})

		It("returns error for nil credential", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.Save(nil)).To(HaveOccurred())
		})
	})

	Describe("Remove", func() {
		It("removes a stored credential", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.Save(&netatmo.Credential{AccessToken: "A1"})).To(Succeed())
			Expect(mgr.Remove()).To(Succeed())

			cred, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cred).To(BeNil())
		})

		It("is a no-op when nothing is stored", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.Remove()).To(Succeed())
		})
	})

	Describe("Updater", func() {
		It("persists refreshed credentials", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			updater := mgr.Updater(nil)
			updater.OnTokenRefreshed(&netatmo.Credential{
				AccessToken:  "A2",
				RefreshToken: "R2",
				ExpiresAt:    time.Unix(1712345678, 0),
			})

			got, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.AccessToken).To(Equal("A2"))
			Expect(got.RefreshToken).To(Equal("R2"))
		})

		It("logs save failures instead of panicking", func() {
			dir := filepath.Join(tmpDir, "store")
			mgr, err := credentials.NewManager(dir)
			Expect(err).NotTo(HaveOccurred())

			// Pull the directory out from under the store so the write fails.
			Expect(os.RemoveAll(dir)).To(Succeed())

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			updater := mgr.Updater(logger)
			updater.OnTokenRefreshed(&netatmo.Credential{AccessToken: "A2"})

			Expect(buf.String()).To(ContainSubstring("credential_save_failed"))
		})
	})
})
