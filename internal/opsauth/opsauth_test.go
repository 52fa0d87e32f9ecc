package opsauth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/meradin/internal/opsauth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHashAndVerify(t *testing.T) {
	Convey("Given a hashed password", t, func() {
		hash, err := opsauth.HashPassword("s3cret-pass")
		So(err, ShouldBeNil)

		Convey("Then it is an argon2id PHC string", func() {
			So(hash, ShouldStartWith, "$argon2id$v=19$m=65536,t=1,p=4$")
		})

		Convey("Then the right password verifies", func() {
			ok, err := opsauth.VerifyPassword("s3cret-pass", hash)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("Then a wrong password does not", func() {
			ok, err := opsauth.VerifyPassword("nope", hash)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Then hashing again uses a fresh salt", func() {
			again, err := opsauth.HashPassword("s3cret-pass")
			So(err, ShouldBeNil)
			So(again, ShouldNotEqual, hash)
		})
	})

	Convey("Given malformed hashes", t, func() {
		for _, bad := range []string{
			"invalid",
			"$bcrypt$v=1$m=65536,t=1,p=4$salt$hash",
			"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
		} {
			_, err := opsauth.VerifyPassword("pw", bad)
			So(errors.Is(err, opsauth.ErrInvalidHash), ShouldBeTrue)
		}
	})

	Convey("Given an empty password", t, func() {
		_, err := opsauth.HashPassword("")
		So(err, ShouldEqual, opsauth.ErrEmptyPass)
	})
}

func TestParse(t *testing.T) {
	hash, err := opsauth.HashPassword("pw-ops")
	if err != nil {
		t.Fatal(err)
	}

	Convey("Given a credentials file with comments", t, func() {
		creds, err := opsauth.Parse(strings.NewReader("# ops users\n\nops:" + hash + "\n"))
		So(err, ShouldBeNil)
		So(creds.Len(), ShouldEqual, 1)

		Convey("Then known users are checked against their hash", func() {
			So(creds.Check("ops", "pw-ops"), ShouldBeTrue)
			So(creds.Check("ops", "wrong"), ShouldBeFalse)
			So(creds.Check("someone", "pw-ops"), ShouldBeFalse)
		})
	})

	Convey("Given a line without a hash", t, func() {
		_, err := opsauth.Parse(strings.NewReader("ops:plaintext\n"))
		So(errors.Is(err, opsauth.ErrMalformed), ShouldBeTrue)
	})

	Convey("Given no path", t, func() {
		creds, err := opsauth.Load("")
		So(err, ShouldBeNil)
		So(creds.Len(), ShouldEqual, 0)
		So(creds.Check("ops", "pw"), ShouldBeFalse)
	})

	Convey("Given a missing file", t, func() {
		_, err := opsauth.Load(filepath.Join(t.TempDir(), "absent"))
		So(errors.Is(err, opsauth.ErrReadFile), ShouldBeTrue)
	})
}

func TestWriteFile(t *testing.T) {
	Convey("Given a fresh path", t, func() {
		path := filepath.Join(t.TempDir(), "ops.auth")
		So(opsauth.WriteFile(path, "ops", "pw-ops", false), ShouldBeNil)

		Convey("Then the file is private and loadable", func() {
			info, err := os.Stat(path)
			So(err, ShouldBeNil)
			So(info.Mode().Perm(), ShouldEqual, os.FileMode(0o600))

			creds, err := opsauth.Load(path)
			So(err, ShouldBeNil)
			So(creds.Check("ops", "pw-ops"), ShouldBeTrue)
		})

		Convey("Then writing again without overwrite fails", func() {
			err := opsauth.WriteFile(path, "ops", "other", false)
			So(errors.Is(err, opsauth.ErrFileExists), ShouldBeTrue)
		})

		Convey("Then overwrite replaces the entry", func() {
			So(opsauth.WriteFile(path, "ops", "other", true), ShouldBeNil)
			creds, err := opsauth.Load(path)
			So(err, ShouldBeNil)
			So(creds.Check("ops", "other"), ShouldBeTrue)
		})
	})

	Convey("Given a user name with a colon", t, func() {
		_, err := opsauth.Line("a:b", "pw")
		So(err, ShouldEqual, opsauth.ErrEmptyUser)
	})
}

func TestRequire(t *testing.T) {
	hash, err := opsauth.HashPassword("pw-ops")
	if err != nil {
		t.Fatal(err)
	}
	creds, err := opsauth.Parse(strings.NewReader("ops:" + hash))
	if err != nil {
		t.Fatal(err)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	Convey("Given a protected handler", t, func() {
		h := creds.Require(ok)

		Convey("When no credentials are sent", func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then a Basic challenge is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
				So(rec.Header().Get("WWW-Authenticate"), ShouldContainSubstring, "Basic")
			})
		})

		Convey("When the right credentials are sent", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.SetBasicAuth("ops", "pw-ops")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNoContent)
		})
	})

	Convey("Given no credentials configured", t, func() {
		var none *opsauth.Credentials
		rec := httptest.NewRecorder()
		none.Require(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		So(rec.Code, ShouldEqual, http.StatusNoContent)
	})
}
