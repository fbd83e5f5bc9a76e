package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/filex"
	"github.com/golang-jwt/jwt/v5"
)

// URLClaims is carried by signed local URLs.
type URLClaims struct {
	jwt.RegisteredClaims
	Path string `json:"path"`
}

// LocalDisk stores files under a root directory and serves them from a
// public base URL.
type LocalDisk struct {
	root     string
	baseURL  string
	key      []byte
	validity time.Duration
	now      func() time.Time
}

type LocalOption func(*LocalDisk)

// WithSignedURLs makes URL append an HS256 token valid for validity.
func WithSignedURLs(key []byte, validity time.Duration) LocalOption {
	return func(d *LocalDisk) {
		d.key = key
		d.validity = validity
	}
}

func NewLocalDisk(root, baseURL string, opts ...LocalOption) (*LocalDisk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	if err := filex.EnsureDir(abs); err != nil {
		return nil, err
	}

	d := &LocalDisk{root: abs, baseURL: baseURL, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

func (d *LocalDisk) Root() string { return d.root }

func (d *LocalDisk) fullPath(p string) (string, string, error) {
	key, err := CleanKey(p)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(d.root, filepath.FromSlash(key)), nil
}

func (d *LocalDisk) Write(ctx context.Context, p string, r io.Reader, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, full, err := d.fullPath(p)
	if err != nil {
		return "", err
	}

	if _, err := filex.AtomicWrite(full, r); err != nil {
		return "", fmt.Errorf("local write %s: %w", key, err)
	}
	return key, nil
}

func (d *LocalDisk) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, full, err := d.fullPath(p)
	if err != nil {
		return err
	}
	return filex.RemoveIfExists(full, d.root)
}

func (d *LocalDisk) Exists(_ context.Context, p string) (bool, error) {
	_, full, err := d.fullPath(p)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
}

func (d *LocalDisk) Open(_ context.Context, p string) (io.ReadCloser, error) {
	key, full, err := d.fullPath(p)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, common.ErrorNotFound)
		}
		return nil, err
	}
	return f, nil
}

// URL returns the public URL of p. With signing enabled a token query
// parameter is appended; an unsignable path yields the unsigned URL.
func (d *LocalDisk) URL(p string) string {
	key, err := CleanKey(p)
	if err != nil {
		return ""
	}

	u := joinURL(d.baseURL, key)
	if len(d.key) == 0 {
		return u
	}

	token, err := d.signToken(key)
	if err != nil {
		return u
	}
	return u + "?token=" + token
}

func (d *LocalDisk) signToken(key string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, URLClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(d.now().Add(d.validity)),
		},
		Path: key,
	})
	return token.SignedString(d.key)
}

// VerifyToken checks that token was issued by this disk for p and has not
// expired.
func (d *LocalDisk) VerifyToken(token, p string) error {
	key, err := CleanKey(p)
	if err != nil {
		return err
	}

	claims := &URLClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return d.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(d.now))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Path != key {
		return common.ErrInvalidToken
	}
	return nil
}
