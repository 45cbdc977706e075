package dialog

// DefaultDialogName is the waterfall used when no dialog file overrides it.
const DefaultDialogName = "user-profile"

// DefaultWaterfall collects a user's name, location and destination.
func DefaultWaterfall() *Waterfall {
	return &Waterfall{
		Name:        DefaultDialogName,
		Version:     "1",
		Description: "Collects name, location and destination, then asks for confirmation.",
		Fields: []Field{
			{
				Name:               "name",
				Prompt:             "Please enter Your first name:",
				MaxLength:          35,
				TooLongMessage:     "Your name is too long!",
				ForbidDigits:       true,
				DigitsMessage:      "Your name cannot contain numbers!",
				ForbidPunctuation:  true,
				PunctuationMessage: "Your name cannot contain punctuation!",
			},
			{
				Name:           "location",
				Prompt:         "Please enter Your location:",
				MaxLength:      300,
				TooLongMessage: "Location is too long!",
			},
			{
				Name:           "destination",
				Prompt:         "Please enter Your destination:",
				MaxLength:      300,
				TooLongMessage: "Destination is too long!",
			},
		},
		Summary:         "I have Your name as {{.Fields.name}}, location: {{.Fields.location}}, destination: {{.Fields.destination}}.",
		ConfirmPrompt:   "Is collected data correct?",
		SavedMessage:    "Your profile was saved successfully.",
		NotSavedMessage: "Your profile was not saved.",
	}
}
