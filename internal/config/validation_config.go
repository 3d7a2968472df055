package config

type ValidationConfig interface {
	GetMinPasswordLength() int
	GetCodeLength() int
}

type Validation struct{}

var _ ValidationConfig = Validation{}

func (Validation) GetMinPasswordLength() int {
	return 6
}

func (Validation) GetCodeLength() int {
	return 6
}
