package stable

import "pegvault/crypto"

var (
	stableConfigKey        = []byte("stable/config")
	stableIndexKey         = []byte("stable/index")
	stableVaultPrefix      = []byte("stable/vault/")
	stableBenefactorPrefix = []byte("stable/benefactor/")
	stableOperatorPrefix   = []byte("stable/operator/")
)

func prefixedKey(prefix []byte, addr crypto.Address) []byte {
	buf := make([]byte, len(prefix)+len(addr))
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}

func stableVaultKey(mint crypto.Address) []byte {
	return prefixedKey(stableVaultPrefix, mint)
}

func stableBenefactorKey(authority crypto.Address) []byte {
	return prefixedKey(stableBenefactorPrefix, authority)
}

func stableOperatorKey(authority crypto.Address) []byte {
	return prefixedKey(stableOperatorPrefix, authority)
}
