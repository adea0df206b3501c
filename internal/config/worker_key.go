package config

type WorkerKeyStruct struct {
	RenderCertificatesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	RenderCertificatesQueue: "render_certificates_queue",
}
