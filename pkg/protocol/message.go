package protocol

// MessageType identifies the kind of an Envelope.
type MessageType string

// Inbound message types (client → server).
const (
	InVersion            MessageType = "geppetto_version"
	InInitURL            MessageType = "init_url"
	InInitSim            MessageType = "init_sim"
	InRunScript          MessageType = "run_script"
	InSimulationConfig   MessageType = "sim"
	InStart              MessageType = "start"
	InPause              MessageType = "pause"
	InStop               MessageType = "stop"
	InObserve            MessageType = "observe"
	InListWatchVariables MessageType = "list_watch_vars"
	InListForceVariables MessageType = "list_force_vars"
	InSetWatchLists      MessageType = "set_watch"
	InGetWatchLists      MessageType = "get_watch"
	InStartWatch         MessageType = "start_watch"
	InStopWatch          MessageType = "stop_watch"
	InClearWatchLists    MessageType = "clear_watch"
)

// Outbound message types (server → client).
const (
	OutClientID               MessageType = "client_id"
	OutVersion                MessageType = "geppetto_version"
	OutReadURLParameters      MessageType = "read_url_parameters"
	OutSimulationLoaded       MessageType = "simulation_loaded"
	OutScriptsAvailable       MessageType = "fire_sim_scripts"
	OutSimulationStarted      MessageType = "simulation_started"
	OutSimulationPaused       MessageType = "simulation_paused"
	OutSimulationStopped      MessageType = "simulation_stopped"
	OutObserverMode           MessageType = "observer_mode"
	OutLoadModel              MessageType = "load_model"
	OutSceneUpdate            MessageType = "scene_update"
	OutServerUnavailable      MessageType = "server_unavailable"
	OutServerAvailable        MessageType = "server_available"
	OutSimulatorFull          MessageType = "simulator_full"
	OutReloadCanvas           MessageType = "reload_canvas"
	OutWatchVariables         MessageType = "list_watch_vars"
	OutForceVariables         MessageType = "list_force_vars"
	OutWatchListsSet          MessageType = "set_watch_lists"
	OutWatchStarted           MessageType = "start_watch"
	OutWatchStopped           MessageType = "stop_watch"
	OutWatchListsCleared      MessageType = "clear_watch"
	OutWatchLists             MessageType = "get_watch_lists"
	OutRunScript              MessageType = "run_script"
	OutSimulationConfig       MessageType = "simulation_configuration"
	OutErrorLoadingSimulation MessageType = "error_loading_simulation"
	OutErrorLoadingConfig     MessageType = "error_loading_simulation_config"
	OutErrorReadingScript     MessageType = "error_reading_script"
	OutErrorAddingWatchList   MessageType = "error_adding_watch_list"
	OutError                  MessageType = "error"
)

var inbound = map[MessageType]bool{
	InVersion:            true,
	InInitURL:            true,
	InInitSim:            true,
	InRunScript:          true,
	InSimulationConfig:   true,
	InStart:              true,
	InPause:              true,
	InStop:               true,
	InObserve:            true,
	InListWatchVariables: true,
	InListForceVariables: true,
	InSetWatchLists:      true,
	InGetWatchLists:      true,
	InStartWatch:         true,
	InStopWatch:          true,
	InClearWatchLists:    true,
}

// IsInbound reports whether t is a message type clients may send.
func (t MessageType) IsInbound() bool {
	return inbound[t]
}

// IsError reports whether t is one of the outbound error notifications.
func (t MessageType) IsError() bool {
	switch t {
	case OutErrorLoadingSimulation, OutErrorLoadingConfig, OutErrorReadingScript,
		OutErrorAddingWatchList, OutError:
		return true
	}
	return false
}

// String returns the wire name of the message type.
func (t MessageType) String() string {
	return string(t)
}
