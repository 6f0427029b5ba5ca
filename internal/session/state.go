package session

// Turn is one transcript entry of an active chat.
type Turn struct {
	Role string
	Text string
}

// DialogueState is the per-user conversation state. Exactly one variant
// exists per user at a time; the engine owns every mutation. The sum type
// keeps illegal combinations (for example a transcript while
// unauthenticated) unrepresentable.
type DialogueState interface {
	dialogueState()
}

// Unauthenticated is the initial state for a new account.
type Unauthenticated struct{}

// AwaitingCaptcha holds the expected answer (lower-cased, trimmed) and a
// reference to the challenge message so a reissued challenge can replace it.
type AwaitingCaptcha struct {
	Question string
	Answer   string
	Prompt   MessageRef
}

// MainMenu is the hub state between chat, settings and enhanced mode.
type MainMenu struct{}

// SettingsMenu is the settings hub.
type SettingsMenu struct{}

// AwaitingInstruction captures the next text message as the custom system
// instruction.
type AwaitingInstruction struct {
	Prompt MessageRef
}

// AwaitingTemperature captures the next text message as the sampling
// temperature override.
type AwaitingTemperature struct {
	Prompt MessageRef
}

// AwaitingImageModel waits for an image model selection.
type AwaitingImageModel struct{}

// AwaitingImagePrompt captures the next text message as an image prompt.
type AwaitingImagePrompt struct {
	Model string
}

// ActiveChat is an ongoing conversation with one selected model.
type ActiveChat struct {
	Model      string
	Transcript []Turn
}

// EnhancedChat is an ongoing enhanced-mode (fan-out) conversation.
type EnhancedChat struct{}

func (Unauthenticated) dialogueState()     {}
func (AwaitingCaptcha) dialogueState()     {}
func (MainMenu) dialogueState()            {}
func (SettingsMenu) dialogueState()        {}
func (AwaitingInstruction) dialogueState() {}
func (AwaitingTemperature) dialogueState() {}
func (AwaitingImageModel) dialogueState()  {}
func (AwaitingImagePrompt) dialogueState() {}
func (ActiveChat) dialogueState()          {}
func (EnhancedChat) dialogueState()        {}
