package config

// MinioConfig is the archive target when archive.backend is minio.
type MinioConfig struct {
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Endpoint   string `yaml:"endpoint"`
	UseSSL     bool   `yaml:"useSSL"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucketName"`
}

func (m *MinioConfig) applyEnv() {
	envString("MINIO_ACCESS_KEY", &m.AccessKey)
	envString("MINIO_SECRET_KEY", &m.SecretKey)
	envString("MINIO_ENDPOINT", &m.Endpoint)
	envBool("MINIO_USE_SSL", &m.UseSSL)
	envString("MINIO_REGION", &m.Region)
	envString("MINIO_BUCKET_NAME", &m.BucketName)
}
