// Command snmpcollector runs the stages of the SNMP collection pipeline.
//
// Every stage runs as its own process and talks to the others through Redis
// queues named <namespace>:<component>:<instance>:<kind>:
//
//	snmpcollector stage supervisor --trigger.interval 60s
//	snmpcollector stage walker --workers 8
//	snmpcollector stage annotator
//	snmpcollector stage summary --metrics.listen :9100
//
// The trigger subcommand starts a single round and queues prints the depth of
// every queue of an instance.
package main

func main() {
	Execute()
}
