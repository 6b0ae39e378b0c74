package config

// S3Config is the archive target when archive.backend is s3.
type S3Config struct {
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
}

func (s *S3Config) applyEnv() {
	envString("AWS_S3_BUCKET_NAME", &s.BucketName)
	envString("AWS_REGION", &s.Region)
	envString("AWS_ENDPOINT", &s.Endpoint)
	envString("AWS_ACCESS_KEY", &s.AccessKey)
	envString("AWS_SECRET_KEY", &s.SecretKey)
}
