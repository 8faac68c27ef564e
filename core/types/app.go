package types

import (
	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// AppMeta is an application's registered metadata, per the original
// Seloria implementation's app registry (supplemented into this spec;
// see SPEC_FULL.md §C).
type AppMeta struct {
	AppID        crypto.Hash
	Version      string
	Publisher    crypto.PublicKey
	MetadataHash crypto.Hash
	Namespaces   []string
	Schemas      []string
	Recipes      []string
	RegisteredAt uint64
}

// ComputeAppID computes app_id = Blake3("app" || publisher || version).
func ComputeAppID(publisher crypto.PublicKey, version string) crypto.Hash {
	return crypto.SumAll([]byte("app"), publisher[:], []byte(version))
}

// Encode writes the canonical encoding of the app's metadata.
func (a *AppMeta) Encode(w *codec.Writer) {
	w.Fixed32(a.AppID)
	w.String(a.Version)
	w.Fixed32(a.Publisher)
	w.Fixed32(a.MetadataHash)
	writeStrings(w, a.Namespaces)
	writeStrings(w, a.Schemas)
	writeStrings(w, a.Recipes)
	w.U64(a.RegisteredAt)
}

// DecodeAppMeta reads an AppMeta from its canonical encoding.
func DecodeAppMeta(r *codec.Reader) (*AppMeta, error) {
	a := &AppMeta{}
	fx, err := r.Fixed32()
	if err != nil {
		return nil, err
	}
	a.AppID = fx
	if a.Version, err = r.String(); err != nil {
		return nil, err
	}
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	a.Publisher = fx
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	a.MetadataHash = fx
	if a.Namespaces, err = readStrings(r); err != nil {
		return nil, err
	}
	if a.Schemas, err = readStrings(r); err != nil {
		return nil, err
	}
	if a.Recipes, err = readStrings(r); err != nil {
		return nil, err
	}
	if a.RegisteredAt, err = r.U64(); err != nil {
		return nil, err
	}
	return a, nil
}
