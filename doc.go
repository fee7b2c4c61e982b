/*
Package tripvoice is a voice and text front-end for a conversational trip-planning assistant.

It captures spoken or typed input, gathers trip constraints through an external
intent service, answers questions about a generated itinerary, and speaks the
assistant's replies back, falling back to an on-device voice when remote
synthesis fails.

# Concept

One Assistant owns one conversation. Every utterance, confirmation and export
is accepted in order and dispatched one at a time against the backend, so the
conversation log always reads in the order the user spoke, even when the
services answer slowly. Presentation layers (terminal, HTTP, MCP) only read
snapshots of the conversation state and call the operations below.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/tripvoice"
		"github.com/aretw0/tripvoice/pkg/adapters/backend"
	)

	func main() {
		client := backend.New("http://localhost:8000")
		assistant := tripvoice.New(client, tripvoice.WithSynthesizer(client))
		defer assistant.Close()

		ctx := context.Background()
		ticket, err := assistant.Send(ctx, "Three days in Kyoto, temples and food")
		if err != nil {
			log.Fatal(err)
		}
		res, _ := ticket.Wait(ctx)
		fmt.Println(res.Reply)

		if assistant.State().CanConfirm() {
			ticket, _ = assistant.ConfirmItinerary(ctx)
			res, _ = ticket.Wait(ctx)
			fmt.Println(res.Outcome)
		}
	}

# Voice

Voice input needs a transcriber and, for local recording, a microphone:

	assistant := tripvoice.New(client,
		tripvoice.WithTranscriber(client),
		tripvoice.WithMicrophone(process.NewMicrophone(devices.Microphone)),
	)

StartRecording and StopRecording drive one capture session at a time;
SubmitAudio transcribes audio recorded elsewhere, such as in a browser.
*/
package tripvoice
