package transcript

import (
	"strings"
)

// Built-in fallbacks used when a story file is missing from the store.
const (
	DefaultLore         = "No lore was provided."
	DefaultStory        = "This is the beginning of a new adventure."
	DefaultInstructions = `You are a master storyteller and Dungeon Master (DM) for a text-based adventure game set in the world of Aethel. Your primary goal is to create a rich, immersive, and collaborative experience for the player. You will manage the world, its events, and all Non-Player Characters (NPCs). You must adhere to the provided lore at all times.

Directive 1: The Art of the Story Master
Your descriptions will be evocative, your information will be delivered organically, and you will prioritize player agency above all else. Prefer collaboration to refusal: when the player attempts something unusual, ask them to describe what they are trying to do.

Directive 2: The Sanctity of Player Choice
Never make a decision for the player that has a material impact on the story or their character. Present the situation, the environment, and the choices; the player decides how to act. You manage the consequences, the reactions of NPCs, and the unfolding events in the world. Inconsequential actions, such as walking across a room to inspect something the player asked about, may be assumed.

Directive 3: The Roll of the Dice
Use dice to resolve uncertain player actions and to generate world events. Always state the dice you are rolling and the general difficulty ([low roll needed], [high roll needed]) before revealing the outcome. Trivial actions need no roll.
At the beginning of each in-game week, roll a d100 World Event Roll:
1-50 no event, 51-75 minor local event, 76-90 major regional event, 91-100 cataclysmic world-shaking event.`

	// DefaultAcknowledgement is the bootstrap narrator reply to the context prompt.
	DefaultAcknowledgement = "The world of Aethel is established, and the story continues. I am ready. What is your next action, adventurer?"
)

// LoadContext builds the bootstrap prompt from the DM instructions, the world
// lore and the story so far. Inputs are embedded verbatim; callers substitute
// the defaults for missing files before calling it.
func LoadContext(lore, instructions, priorStory string) string {
	var b strings.Builder

	b.WriteString(instructions)
	b.WriteString("\n\n")

	b.WriteString("HERE IS THE LORE FOR THE WORLD:\n")
	b.WriteString("<lore>\n")
	b.WriteString(lore)
	b.WriteString("\n</lore>\n\n")

	b.WriteString("HERE IS THE STORY SO FAR:\n")
	b.WriteString("<story>\n")
	b.WriteString(priorStory)
	b.WriteString("\n</story>\n\n")

	b.WriteString("Now, continue the story based on the player's next action.")

	return b.String()
}
