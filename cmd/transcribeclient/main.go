// transcribeclient streams a WAV file through the transcription pipeline and
// prints the stabilized segments. Useful for smoke-testing an endpoint or the
// stabilizer without a live call.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"voice-translation-bridge/internal/audio"
	"voice-translation-bridge/internal/auth"
	"voice-translation-bridge/internal/models"
	"voice-translation-bridge/internal/service/transcribe"
	"voice-translation-bridge/internal/transport/mocktranscribe"
	"voice-translation-bridge/internal/transport/wstranscribe"
)

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16-bit mono PCM)")
	endpoint := flag.String("endpoint", "", "Streaming transcription endpoint (empty = simulated transport)")
	credsEndpoint := flag.String("credentials", "", "Credentials endpoint (required with -endpoint)")
	language := flag.String("language", "en-US", "Source language code")
	stability := flag.String("stability", transcribe.StabilityHigh, "Stability mode: none, low, medium, high")
	timeout := flag.Duration("timeout", 2*time.Minute, "Session timeout")
	flag.Parse()

	source, err := audio.NewFileSource(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio: %v", err)
	}
	defer source.Close()

	log.Printf("Streaming %s at %d Hz", *audioFile, source.SampleRate())

	var provider auth.Provider
	var factory transcribe.TransportFactory
	if *endpoint == "" {
		log.Println("No endpoint given, using the simulated transport")
		mock := mocktranscribe.New()
		provider = auth.NewCachingProvider(func(context.Context) (auth.Credentials, error) {
			return auth.Credentials{AccessKeyID: "local", Expiry: time.Now().Add(time.Hour)}, nil
		})
		factory = func(auth.Credentials) transcribe.Transport { return mock }
	} else {
		if *credsEndpoint == "" {
			log.Fatal("-credentials is required with -endpoint")
		}
		provider = auth.NewCachingProvider(auth.NewHTTPFetcher(*credsEndpoint))
		target := *endpoint
		factory = func(creds auth.Credentials) transcribe.Transport {
			return wstranscribe.New(target, creds)
		}
	}

	driver := transcribe.NewDriver(models.AgentChannel, provider, factory)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	started := time.Now()
	err = driver.Start(ctx, source, source.SampleRate(), *language, *stability,
		func(text string) { log.Printf("FINAL:   %s", text) },
		func(text string) { log.Printf("partial: %s", text) },
	)
	if err != nil {
		log.Fatalf("Session failed: %v", err)
	}

	log.Printf("Session completed in %v", time.Since(started).Round(time.Millisecond))
}
