// Command telemetrysink is a host-side MQTT subscriber that prints the
// event and position stream a running gantryd publishes, independent of
// and in addition to the serial command link.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	gantryID := flag.String("gantry-id", "gantry0", "gantry ID to subscribe to")
	flag.Parse()

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID("telemetrysink").
		SetAutoReconnect(true)

	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		fmt.Printf("%s: %s\n", msg.Topic(), msg.Payload())
	})

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		fmt.Fprintf(os.Stderr, "telemetrysink: connect: %v\n", tok.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	eventTopic := fmt.Sprintf("gantry/%s/event", *gantryID)
	positionTopic := fmt.Sprintf("gantry/%s/position", *gantryID)
	if tok := client.Subscribe(eventTopic, 0, nil); tok.Wait() && tok.Error() != nil {
		fmt.Fprintf(os.Stderr, "telemetrysink: subscribe %s: %v\n", eventTopic, tok.Error())
		os.Exit(1)
	}
	if tok := client.Subscribe(positionTopic, 0, nil); tok.Wait() && tok.Error() != nil {
		fmt.Fprintf(os.Stderr, "telemetrysink: subscribe %s: %v\n", positionTopic, tok.Error())
		os.Exit(1)
	}

	fmt.Printf("telemetrysink: subscribed to %s and %s\n", eventTopic, positionTopic)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}
