package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/panel.go/pkg/bridge"
	"github.com/robotalks/panel.go/pkg/bridge/mqtt"
	"github.com/robotalks/panel.go/pkg/protocol"
)

var (
	mqttURL = "mqtt://localhost:1883/panel/"
)

func init() {
	if val := os.Getenv("PANEL_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, mqtt.MetaTopicSuffix), strings.HasSuffix(topic, mqtt.StateTopicSuffix):
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		env, err := bridge.DecodeEnvelope(payload)
		if err != nil {
			log.Printf("%s: bad envelope: %v", topic, err)
			return
		}
		msg, err := env.Message()
		if err != nil {
			log.Printf("%s: decode error: (type=%s) %v", topic, protocol.TypeName(uint8(env.Type)), err)
			return
		}
		log.Printf("%s: [%s] %s", topic, protocol.TypeName(msg.Type()), msg)
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
