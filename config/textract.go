package config

// TextractConfig 用于 model 名为 "textract" 的 OCR 引擎
type TextractConfig struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// Configured reports whether static credentials are present.
func (t TextractConfig) Configured() bool {
	return t.AccessKey != "" && t.SecretKey != ""
}

func (t *TextractConfig) applyEnv() {
	envString("AWS_REGION", &t.Region)
	envString("AWS_ENDPOINT", &t.Endpoint)
	envString("AWS_ACCESS_KEY", &t.AccessKey)
	envString("AWS_SECRET_KEY", &t.SecretKey)
}

// TesseractConfig enables the local gosseract engine.
type TesseractConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Languages []string `yaml:"languages"`
}

func (t *TesseractConfig) applyEnv() {
	envBool("TESSERACT_ENABLED", &t.Enabled)
}
