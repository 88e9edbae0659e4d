package cli

// app.go builds the service stack the CLI commands run against. The CLI
// always uses the file-backed store: it is a single process by definition.

import (
	"github.com/efactura-ao/agt-bridge/internal/agt"
	"github.com/efactura-ao/agt-bridge/internal/backup"
	"github.com/efactura-ao/agt-bridge/internal/service"
	"github.com/efactura-ao/agt-bridge/internal/signing"
	"github.com/efactura-ao/agt-bridge/internal/syncer"
	"github.com/efactura-ao/agt-bridge/internal/transport"
)

func newService() (*service.Service, error) {
	username, password := cfg.Credentials()
	auth := transport.Auth{Kind: transport.AuthNone}
	if username != "" {
		auth = transport.Auth{Kind: transport.AuthBasic, Username: username, Password: password}
	}

	client := transport.NewClient(transport.Config{
		BaseURL:       cfg.BaseURL(),
		Auth:          auth,
		Timeout:       cfg.CallTimeout,
		MaxRetries:    cfg.MaxRetries,
		OutboundRPS:   cfg.OutboundRPS,
		OutboundBurst: cfg.OutboundBurst,
	}, appLogger)

	signer, err := signing.NewPipeline(cfg.SigningKeyPath, cfg.SigningKeyID, appLogger)
	if err != nil {
		// a broken key disables signing but does not block CLI usage
		appLogger.Warn("signing disabled: " + err.Error())
		signer, _ = signing.NewPipeline("", cfg.SigningKeyID, appLogger)
	}

	store := backup.NewFileStore(cfg.BackupFilePath)
	coordinator := syncer.New(appLogger)

	software := agt.SoftwareInfo{
		ProductID:      cfg.SoftwareProductID,
		ProductVersion: cfg.SoftwareVersion,
		CertificateNo:  cfg.SoftwareCertNo,
	}

	return service.New(client, signer, store, coordinator, cfg.IssuerTaxID, software, appLogger), nil
}
