package turn

import "github.com/medivoice/medivoice-core/internal/config"

// Persona is the fixed instruction block prepended to every transcript. It is
// versioned so the text can be swapped or tested independently of the
// responder that consumes it.
type Persona struct {
	Version      string
	Instructions string
}

const doctorV1 = `You have to act as a professional doctor, i know you are not but this is for learning purpose. ` +
	`What's in this image? Do you find anything wrong with it medically? ` +
	`If you make a differential, suggest some remedies for them. Do not add any numbers or special characters in ` +
	`your response. Your response should be in one long paragraph. Also always answer as if you are answering to a real person. ` +
	`Do not say 'In the image I see' but say 'With what I see, I think you have ....' ` +
	`Don't respond as an AI model in markdown, your answer should mimic that of an actual doctor not an AI bot. ` +
	`Keep your answer concise (max 2 sentences). No preamble, start your answer right away please.`

// PersonaFromConfig resolves the configured persona, falling back to the
// built-in doctor persona when no custom text is supplied.
func PersonaFromConfig(cfg config.TurnConfig) Persona {
	p := Persona{
		Version:      cfg.PersonaVersion,
		Instructions: doctorV1,
	}
	if cfg.PersonaText != "" {
		p.Instructions = cfg.PersonaText
	}
	return p
}

// Compose builds the full prompt for one turn.
func (p Persona) Compose(transcript string) string {
	return p.Instructions + " " + transcript
}
