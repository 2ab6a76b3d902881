package storage

import (
	"context"
	"errors"
)

// NoopUploader é o fallback quando nenhum bucket está configurado: qualquer
// tentativa de anexar documento de contrato falha com erro explícito em vez
// de gravar em lugar nenhum.
type NoopUploader struct{}

// Upload sempre falha; o handler converte o erro em 500 de armazenamento
// indisponível.
func (NoopUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	return nil, errors.New("storage: nenhum bucket configurado para documentos")
}
