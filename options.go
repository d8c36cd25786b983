package docrender

import "time"

// chromeConfig holds internal configuration for a ChromeBackend.
type chromeConfig struct {
	chromePath      string
	timeout         time.Duration
	noSandbox       bool
	headless        string
	autoDownload    bool
	printBackground bool
}

func defaultChromeConfig() chromeConfig {
	return chromeConfig{
		timeout:         30 * time.Second,
		headless:        "new",
		printBackground: true,
	}
}

// ChromeOption configures a [ChromeBackend].
type ChromeOption func(*chromeConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) ChromeOption {
	return func(c *chromeConfig) {
		c.chromePath = path
	}
}

// WithTimeout sets the maximum duration for a single render.
// Defaults to 30 seconds. A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) ChromeOption {
	return func(c *chromeConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() ChromeOption {
	return func(c *chromeConfig) {
		c.noSandbox = true
	}
}

// WithAutoDownload fetches a compatible Chromium build when no Chrome path
// is configured. The download is cached between runs.
func WithAutoDownload() ChromeOption {
	return func(c *chromeConfig) {
		c.autoDownload = true
	}
}

// WithHeadless sets the value of Chrome's --headless flag, "new" by default.
func WithHeadless(mode string) ChromeOption {
	return func(c *chromeConfig) {
		c.headless = mode
	}
}

// WithoutBackground turns off printing of background colours and images.
func WithoutBackground() ChromeOption {
	return func(c *chromeConfig) {
		c.printBackground = false
	}
}
