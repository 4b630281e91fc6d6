package config

import "path/filepath"

// Dir is the directory holding transfer.info, me.info and priv.key.
type Dir string

func (d Dir) Path(name string) string {
	return filepath.Join(string(d), name)
}

func (d Dir) LoadBootstrap() (Bootstrap, error) {
	return LoadBootstrap(d.Path(BootstrapFile))
}

// LoadIdentity reads me.info. An identity without key lines has no usable
// key: priv.key may belong to an earlier identity and is never paired with
// this id.
func (d Dir) LoadIdentity() (Identity, error) {
	return LoadIdentity(d.Path(IdentityFile))
}

func (d Dir) SaveIdentity(id Identity) error {
	return SaveIdentity(d.Path(IdentityFile), id)
}

func (d Dir) SavePrivateKey(der []byte) error {
	return SavePrivateKey(d.Path(PrivateKeyFile), der)
}
