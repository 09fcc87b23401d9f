package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged       bool
	NewLogLevel           LogLevel
	VoicesChanged         bool
	VoiceChanges          []VoiceDiff
	FuzzyThresholdChanged bool
	NewFuzzyThreshold     int
}

// VoiceDiff describes a per-locale voice change between two configs.
type VoiceDiff struct {
	Locale   string
	NewVoice string
	Removed  bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Game.FuzzyThreshold != new.Game.FuzzyThreshold {
		d.FuzzyThresholdChanged = true
		d.NewFuzzyThreshold = new.Game.FuzzyThreshold
	}

	// Detect modified and removed voices.
	for locale, oldVoice := range old.Game.Voices {
		newVoice, exists := new.Game.Voices[locale]
		if !exists {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{Locale: locale, Removed: true})
			d.VoicesChanged = true
			continue
		}
		if oldVoice != newVoice {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{Locale: locale, NewVoice: newVoice})
			d.VoicesChanged = true
		}
	}

	// Detect added voices.
	for locale, newVoice := range new.Game.Voices {
		if _, exists := old.Game.Voices[locale]; !exists {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{Locale: locale, NewVoice: newVoice})
			d.VoicesChanged = true
		}
	}

	return d
}
