package creative

import "errors"

var (
	ErrGenerationFailure      = errors.New("creative generation failed")
	ErrImageGenerationFailure = errors.New("image generation failed")
	ErrEditFailure            = errors.New("nano-edit failed")
	ErrCompositionFailure     = errors.New("composition failed")
	ErrNoImageProduced        = errors.New("no image produced")
	ErrEmptyTitle             = errors.New("overlay main text is empty")
	ErrNoCreative             = errors.New("no creative in session")
	ErrNoImage                = errors.New("no image in session")
	ErrInvalidTransition      = errors.New("invalid image state transition")
	ErrBusy                   = errors.New("operation already in progress")
	ErrQuotaExceeded          = errors.New("quota exceeded")
)

// User-facing texts. Raw errors never leave the log.
const (
	MsgGenerationFailure  = "Não foi possível processar a solicitação. Verifique sua conexão ou tente novamente."
	MsgImageFailure       = "Erro ao renderizar imagem."
	MsgEditFailure        = "Erro técnico no motor ADMACHINE. Tente outro comando."
	MsgCompositionFailure = "Falha ao compor imagem final. Tente novamente."
	MsgQuotaExceeded      = "Limite de gerações atingido. Tente novamente mais tarde."
)
