package domain

// ProvisionResult is the JSON body of the provisioning endpoint.
type ProvisionResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Path       string `json:"path,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Error      string `json:"error,omitempty"`
}
