package security

import "golang.org/x/crypto/bcrypt"

// BcryptHasher hashes captcha answers so the expected text is never stored
// or shipped in a readable form.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(answer string) (string, error) {
	raw, err := bcrypt.GenerateFromPassword([]byte(answer), h.cost)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (h *BcryptHasher) Compare(hash, answer string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(answer))
}
