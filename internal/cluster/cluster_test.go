package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"
)

func int32Ptr(i int32) *int32 { return &i }

func testDeployment(name, image string, replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "forecast"},
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(replicas),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "api", Image: image},
					},
				},
			},
		},
		Status: appsv1.DeploymentStatus{
			ReadyReplicas:     replicas,
			UpdatedReplicas:   replicas,
			AvailableReplicas: replicas,
		},
	}
}

func TestGetDeploymentStatus(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("forecast-api", "climacast/forecast:v2.3.1", 3))
	c := NewWithClientsets(cs, nil, "forecast")

	status, err := c.GetDeploymentStatus(context.Background(), "forecast-api")
	require.NoError(t, err)
	assert.Equal(t, "forecast-api", status.Name)
	assert.Equal(t, int32(3), status.DesiredReplicas)
	assert.Equal(t, int32(3), status.ReadyReplicas)
	assert.Equal(t, "climacast/forecast:v2.3.1", status.Image)
}

func TestGetDeploymentStatusNotFound(t *testing.T) {
	c := NewWithClientsets(fake.NewSimpleClientset(), nil, "forecast")
	_, err := c.GetDeploymentStatus(context.Background(), "missing")
	assert.Error(t, err)
}

func TestScaleDeployment(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("forecast-api", "climacast/forecast:v2.3.1", 3))
	c := NewWithClientsets(cs, nil, "forecast")

	err := c.ScaleDeployment(context.Background(), "forecast-api", 0)
	require.NoError(t, err)

	dep, err := cs.AppsV1().Deployments("forecast").Get(context.Background(), "forecast-api", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(0), *dep.Spec.Replicas)
}

func TestSetImageDefaultContainer(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("forecast-api", "climacast/forecast:v2.3.1", 3))
	c := NewWithClientsets(cs, nil, "forecast")

	err := c.SetImage(context.Background(), "forecast-api", "", "climacast/forecast:v2.3.0")
	require.NoError(t, err)

	dep, err := cs.AppsV1().Deployments("forecast").Get(context.Background(), "forecast-api", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "climacast/forecast:v2.3.0", dep.Spec.Template.Spec.Containers[0].Image)
}

func TestSetImageNamedContainer(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("forecast-api", "climacast/forecast:v2.3.1", 3))
	c := NewWithClientsets(cs, nil, "forecast")

	err := c.SetImage(context.Background(), "forecast-api", "api", "climacast/forecast:v2.2.9")
	require.NoError(t, err)

	dep, _ := cs.AppsV1().Deployments("forecast").Get(context.Background(), "forecast-api", metav1.GetOptions{})
	assert.Equal(t, "climacast/forecast:v2.2.9", dep.Spec.Template.Spec.Containers[0].Image)
}

func TestSetImageUnknownContainer(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("forecast-api", "climacast/forecast:v2.3.1", 3))
	c := NewWithClientsets(cs, nil, "forecast")

	err := c.SetImage(context.Background(), "forecast-api", "sidecar", "climacast/forecast:v2.2.9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sidecar")
}

func TestRolloutRestartStampsTemplate(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("forecast-api", "climacast/forecast:v2.3.1", 3))
	c := NewWithClientsets(cs, nil, "forecast")

	err := c.RolloutRestart(context.Background(), "forecast-api")
	require.NoError(t, err)

	dep, err := cs.AppsV1().Deployments("forecast").Get(context.Background(), "forecast-api", metav1.GetOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, dep.Spec.Template.Annotations["kubectl.kubernetes.io/restartedAt"])
}

func TestConfigMapRoundTrip(t *testing.T) {
	cs := fake.NewSimpleClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "forecast-config", Namespace: "forecast"},
		Data:       map[string]string{"release": "v2.3.1"},
	})
	c := NewWithClientsets(cs, nil, "forecast")

	data, err := c.GetConfigMap(context.Background(), "forecast-config")
	require.NoError(t, err)
	assert.Equal(t, "v2.3.1", data["release"])

	err = c.UpdateConfigMap(context.Background(), "forecast-config", map[string]string{"release": "v2.3.0"})
	require.NoError(t, err)

	data, err = c.GetConfigMap(context.Background(), "forecast-config")
	require.NoError(t, err)
	assert.Equal(t, "v2.3.0", data["release"])
}

func TestPodLogs(t *testing.T) {
	cs := fake.NewSimpleClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "forecast-api-abc",
			Namespace: "forecast",
			Labels:    map[string]string{"app": "forecast-api"},
		},
	})
	c := NewWithClientsets(cs, nil, "forecast")

	logs, err := c.PodLogs(context.Background(), "app=forecast-api", 200)
	require.NoError(t, err)
	// The fake clientset serves a fixed body for log requests.
	assert.Contains(t, logs, "fake logs")
}

func TestPodUsages(t *testing.T) {
	mcs := metricsfake.NewSimpleClientset()
	// The metrics fake stores constructor-seeded objects under a guessed
	// resource name that the client never reads; seed the tracker with the
	// explicit GVR instead.
	require.NoError(t, mcs.Tracker().Create(
		schema.GroupVersionResource{Group: "metrics.k8s.io", Version: "v1beta1", Resource: "pods"},
		&metricsv1beta1.PodMetrics{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "forecast-api-abc",
				Namespace: "forecast",
				Labels:    map[string]string{"app": "forecast-api"},
			},
			Containers: []metricsv1beta1.ContainerMetrics{
				{
					Name: "api",
					Usage: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("250m"),
						corev1.ResourceMemory: resource.MustParse("512Mi"),
					},
				},
			},
		}, "forecast"))
	c := NewWithClientsets(fake.NewSimpleClientset(), mcs, "forecast")

	usages, err := c.PodUsages(context.Background(), "app=forecast-api")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, "forecast-api-abc", usages[0].Pod)
	assert.Equal(t, int64(250), usages[0].CPUMilli)
	assert.Equal(t, int64(512*1024*1024), usages[0].MemoryBytes)
}

func TestPodUsagesWithoutMetricsClient(t *testing.T) {
	c := NewWithClientsets(fake.NewSimpleClientset(), nil, "forecast")
	_, err := c.PodUsages(context.Background(), "app=forecast-api")
	assert.Error(t, err)
}

func TestReachable(t *testing.T) {
	c := NewWithClientsets(fake.NewSimpleClientset(), nil, "forecast")
	assert.NoError(t, c.Reachable(context.Background()))
}
